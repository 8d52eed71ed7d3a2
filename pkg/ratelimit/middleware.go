package ratelimit

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
)

// DenyHook is called after a request was rejected, before the response is written.
type DenyHook func(c *gin.Context, identifier string, res Result)

// Middleware returns a Gin middleware that applies the limiter per client IP.
// Denied requests get a 429 with Retry-After and X-RateLimit-* metadata.
func (l *Limiter) Middleware(log *zap.SugaredLogger, hooks ...DenyHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := ClientIP(c.Request)
		res := l.Check(ip)
		if !res.Allowed {
			if log != nil {
				log.Warnw("Rate limit exceeded",
					"policy", l.policy.Prefix,
					"clientIP", ip,
					"path", c.Request.URL.Path,
					"resetTime", res.ResetTime)
			}
			for _, hook := range hooks {
				hook(c, ip, res)
			}
			apiresponses.RespondError(c, &apiresponses.RateLimitError{ResetTime: res.ResetTime, Now: l.Now()}, log)
			c.Abort()
			return
		}
		c.Header(apiresponses.HeaderRateLimitRemaining, strconv.Itoa(res.Remaining))
		c.Next()
	}
}
