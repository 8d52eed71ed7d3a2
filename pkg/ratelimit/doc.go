// Package ratelimit provides fixed-window request counters, named admission
// policies built on top of them (login, API, contact forms) and Gin middleware
// that turns a denial into a 429 response with retry metadata.
package ratelimit
