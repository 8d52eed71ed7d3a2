// Package session issues and verifies the signed administrator session token
// and moves it between the server and the browser as an HTTP-only cookie.
//
// Tokens are HS256 JWTs with an absolute expiry. There is no server side
// revocation: logging out only removes the cookie.
package session
