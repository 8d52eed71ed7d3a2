// Package config loads the site configuration from a YAML file, an optional
// .env file and environment overrides, and validates it before the server
// starts.
package config
