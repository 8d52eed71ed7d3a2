// Package client is the HTTP client sitectl uses to talk to a running site server.
package client
