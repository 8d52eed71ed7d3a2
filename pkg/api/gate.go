package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/session"
	"github.com/equitraccion/site/pkg/system"
)

const (
	LoginPagePath = "/admin/login"
	DashboardPath = "/admin"

	MessageNotAuthorized = "No autorizado"
)

var (
	protectedPrefixes = []string{"/admin", "/api/admin"}
	// public paths are matched by prefix, so "/admin/login/" is public too
	publicPrefixes = []string{LoginPagePath, "/api/auth/login", "/api/auth/logout"}
)

// RequiresSession reports whether path is behind the administrator session.
func RequiresSession(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// SessionGate verifies the session cookie on protected paths. API callers get a
// 401 JSON response, browsers are redirected to the login page.
type SessionGate struct {
	sessions *session.Manager
	cookie   session.Cookie
	auditor  audit.Auditor
	log      *zap.SugaredLogger
	admit    gin.HandlerFunc
}

func NewSessionGate(sessions *session.Manager, cookie session.Cookie, auditor audit.Auditor, log *zap.SugaredLogger) *SessionGate {
	return &SessionGate{
		sessions: sessions,
		cookie:   cookie,
		auditor:  auditor,
		log:      log.Named("session-gate"),
	}
}

// NewSessionGateFromConfig builds the token manager and cookie from the session settings.
func NewSessionGateFromConfig(cfg config.Config, auditor audit.Auditor, log *zap.SugaredLogger) (*SessionGate, error) {
	ttl, err := cfg.SessionTTL()
	if err != nil {
		return nil, err
	}
	secret := cfg.Session.Secret
	if secret == "" {
		secret = config.InsecureSessionSecret
	}
	sessions, err := session.NewManager(session.Config{Secret: secret, TTL: ttl})
	if err != nil {
		return nil, err
	}
	cookie := session.Cookie{Name: cfg.Session.CookieName, Secure: cfg.IsProduction()}
	return NewSessionGate(sessions, cookie, auditor, log), nil
}

// WithAdmission rate limits gated API paths before any session check runs.
func (g *SessionGate) WithAdmission(a Admission) *SessionGate {
	g.admit = a.Protected()
	return g
}

// Handlers returns the admission check, when set, followed by the gate itself.
func (g *SessionGate) Handlers() []gin.HandlerFunc {
	if g.admit == nil {
		return []gin.HandlerFunc{g.Middleware()}
	}
	return []gin.HandlerFunc{g.admit, g.Middleware()}
}

// Sessions returns the token manager used by the gate.
func (g *SessionGate) Sessions() *session.Manager {
	return g.sessions
}

// Cookie returns the cookie transport used by the gate.
func (g *SessionGate) Cookie() session.Cookie {
	return g.cookie
}

// Claims returns the verified session of the request. Missing and invalid
// tokens are both reported as ok=false; only the logs tell them apart.
func (g *SessionGate) Claims(c *gin.Context) (*session.Claims, bool) {
	if g.sessions == nil {
		return nil, false
	}
	token := g.cookie.Token(c)
	if token == "" {
		g.log.Debugw("No session cookie", "path", c.Request.URL.Path)
		return nil, false
	}
	claims, err := g.sessions.Verify(token)
	if err != nil {
		g.log.Debugw("Rejected session token", "path", c.Request.URL.Path, "error", err)
		return nil, false
	}
	return claims, true
}

func (g *SessionGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !RequiresSession(path) {
			c.Next()
			return
		}

		claims, ok := g.Claims(c)
		if !ok {
			g.reject(c, path)
			return
		}
		c.Set(system.EmailKey, claims.Email)
		c.Set(system.RoleKey, claims.Role)
		if l := system.GetReqLogger(c, nil); l != nil {
			c.Set(system.ReqLoggerKey, system.EnrichReqLoggerWithAuth(c, l))
		}
		c.Next()
	}
}

func (g *SessionGate) reject(c *gin.Context, path string) {
	kind := "page"
	if strings.HasPrefix(path, "/api/") {
		kind = "api"
	}
	metrics.AuthGateRejected.WithLabelValues(kind).Inc()
	if g.cookie.Token(c) != "" {
		// a presented but unusable token is worth an audit record, a missing one is not
		emit(c, g.auditor, audit.EventGateRejected, audit.Target{Kind: "path", Name: path}, nil)
	}

	if kind == "api" {
		apiresponses.RespondError(c, &apiresponses.AuthError{Reason: "no valid session", Message: MessageNotAuthorized}, g.log)
		c.Abort()
		return
	}
	c.Redirect(http.StatusFound, LoginPagePath)
	c.Abort()
}
