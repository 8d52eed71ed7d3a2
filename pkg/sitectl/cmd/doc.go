// Package cmd implements the sitectl command tree: triggering and previewing
// the newsletter on a running server, and offline helpers for administrator
// credentials and session tokens.
package cmd
