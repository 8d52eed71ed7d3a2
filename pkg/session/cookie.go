package session

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultCookieName is the cookie the session token travels in.
const DefaultCookieName = "auth_token"

// Cookie writes and reads the session cookie.
type Cookie struct {
	Name string
	// Secure marks the cookie HTTPS-only; enabled in production
	Secure bool
}

func (ck Cookie) name() string {
	if ck.Name == "" {
		return DefaultCookieName
	}
	return ck.Name
}

// Set stores the token in an HttpOnly, SameSite=Strict cookie valid for ttl.
func (ck Cookie) Set(c *gin.Context, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(ck.name(), token, int(ttl/time.Second), "/", "", ck.Secure, true)
}

// Clear removes the cookie from the browser.
func (ck Cookie) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(ck.name(), "", -1, "/", "", ck.Secure, true)
}

// Token returns the token from the request cookie, or "" when absent.
func (ck Cookie) Token(c *gin.Context) string {
	token, err := c.Cookie(ck.name())
	if err != nil {
		return ""
	}
	return token
}
