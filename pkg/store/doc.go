// Package store persists the site content (posts, courses), contact form
// submissions and newsletter subscribers through gorm. Postgres is used in
// production, SQLite for local development and tests.
package store
