// Package cli defines the command line flags of the site server binary.
// Every flag has an environment variable fallback.
package cli
