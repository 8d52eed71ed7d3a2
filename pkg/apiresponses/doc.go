// Package apiresponses provides the JSON response envelope, the error
// taxonomy (validation, auth, rate limit, upstream, not found) and helpers
// that turn those errors into HTTP responses, shared between api and
// ratelimit without import cycles.
package apiresponses
