package api

import (
	"github.com/gin-gonic/gin"

	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/ratelimit"
	"github.com/equitraccion/site/pkg/system"
)

// emit records an audit event attributed to the caller of the request.
// The session email is used as actor when the gate stored one.
func emit(c *gin.Context, auditor audit.Auditor, typ audit.EventType, target audit.Target, details map[string]interface{}) {
	emitAs(c, auditor, system.SessionEmail(c), typ, target, details)
}

func emitAs(c *gin.Context, auditor audit.Auditor, user string, typ audit.EventType, target audit.Target, details map[string]interface{}) {
	if auditor == nil {
		return
	}
	auditor.Emit(c.Request.Context(), &audit.Event{
		Type: typ,
		Actor: audit.Actor{
			User:      user,
			SourceIP:  ratelimit.ClientIP(c.Request),
			UserAgent: c.Request.UserAgent(),
		},
		Target:  target,
		Details: details,
	})
}
