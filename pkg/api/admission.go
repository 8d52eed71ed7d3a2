package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/ratelimit"
)

// Admission hands out the rate limit middlewares of the three policies.
// Every denial is logged by the limiter and recorded in the audit trail.
type Admission struct {
	policies ratelimit.Policies
	auditor  audit.Auditor
	log      *zap.SugaredLogger
}

func NewAdmission(policies ratelimit.Policies, auditor audit.Auditor, log *zap.SugaredLogger) Admission {
	return Admission{policies: policies, auditor: auditor, log: log.Named("ratelimit")}
}

func (a Admission) Login() gin.HandlerFunc   { return a.middleware(a.policies.Login) }
func (a Admission) API() gin.HandlerFunc     { return a.middleware(a.policies.API) }
func (a Admission) Contact() gin.HandlerFunc { return a.middleware(a.policies.Contact) }

// Protected applies the api policy to session gated API paths. It is installed
// ahead of the session gate so requests without a session use up the quota too.
func (a Admission) Protected() gin.HandlerFunc {
	limit := a.API()
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasPrefix(path, "/api/") || !RequiresSession(path) {
			c.Next()
			return
		}
		limit(c)
	}
}

func (a Admission) middleware(l *ratelimit.Limiter) gin.HandlerFunc {
	if l == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return l.Middleware(a.log, a.denied(l.Policy().Prefix))
}

func (a Admission) denied(policy string) ratelimit.DenyHook {
	return func(c *gin.Context, identifier string, res ratelimit.Result) {
		emit(c, a.auditor, audit.EventRateLimited, audit.Target{Kind: "path", Name: c.Request.URL.Path}, map[string]interface{}{
			"policy":     policy,
			"identifier": identifier,
			"resetTime":  res.ResetTime.UTC().Format(apiresponses.ISOTimeFormat),
		})
	}
}
