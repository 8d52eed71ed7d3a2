/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package system

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ReqLoggerKey is the context key used to store request-scoped logger in gin context.
	ReqLoggerKey = "reqLogger"
	// RequestIDKey holds the id assigned to the request by RequestLogger.
	RequestIDKey = "requestID"
	// EmailKey and RoleKey are set by the session gate for authenticated requests.
	EmailKey = "email"
	RoleKey  = "role"

	HeaderRequestID = "X-Request-ID"
)

// RequestLogger assigns a request id (reusing a sane incoming X-Request-ID) and
// stores a logger carrying it, the method and the path in the gin context.
func RequestLogger(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Set(ReqLoggerKey, base.With("requestID", id, "method", c.Request.Method, "path", c.Request.URL.Path))
		c.Next()
	}
}

// GetReqLogger returns the request-scoped sugared logger from gin.Context if present,
// otherwise returns the fallback.
func GetReqLogger(c *gin.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return fallback
	}
	if v, ok := c.Get(ReqLoggerKey); ok {
		if l, ok2 := v.(*zap.SugaredLogger); ok2 {
			return l
		}
	}
	return fallback
}

// EnrichReqLoggerWithAuth annotates the request-scoped logger with the session
// identity (email, role) when the gate stored one in the context.
func EnrichReqLoggerWithAuth(c *gin.Context, reqLogger *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil || reqLogger == nil {
		return reqLogger
	}
	if email := c.GetString(EmailKey); email != "" {
		reqLogger = reqLogger.With("email", email)
	}
	if role := c.GetString(RoleKey); role != "" {
		reqLogger = reqLogger.With("role", role)
	}
	return reqLogger
}

// SessionEmail returns the authenticated administrator of the request, or "".
func SessionEmail(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(EmailKey)
}

// ResourceFields returns key/value pairs for SugaredLogger.With or Infow calls
// that identify a stored record. An empty id only yields the "kind" key.
func ResourceFields(kind, id string) []interface{} {
	if id == "" {
		return []interface{}{"kind", kind}
	}
	return []interface{}{"kind", kind, "id", id}
}
