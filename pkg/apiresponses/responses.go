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

package apiresponses

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ISOTimeFormat renders timestamps the way browsers print Date.toISOString().
const ISOTimeFormat = "2006-01-02T15:04:05.000Z07:00"

const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

// Envelope is the JSON shape shared by every endpoint.
// Success responses may add Data or endpoint specific fields through gin.H instead.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RateLimitBody is returned with a 429.
type RateLimitBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ResetTime string `json:"resetTime"`
	Remaining int    `json:"remaining"`
}

// RespondBadRequest sends a 400 Bad Request response.
// Use this for client errors like malformed JSON or invalid parameters.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Success: false, Message: message})
}

// RespondUnauthorized sends a 401 Unauthorized response.
// The message never reveals whether a credential was missing or wrong.
func RespondUnauthorized(c *gin.Context) {
	RespondUnauthorizedWithMessage(c, "")
}

// RespondUnauthorizedWithMessage sends a 401 Unauthorized response with a custom message.
func RespondUnauthorizedWithMessage(c *gin.Context, message string) {
	if message == "" {
		message = MessageUnauthorized
	}
	c.JSON(http.StatusUnauthorized, Envelope{Success: false, Message: message})
}

// RespondNotFound sends a 404 Not Found response with a standardized message.
func RespondNotFound(c *gin.Context, resourceType, resourceID string) {
	c.JSON(http.StatusNotFound, Envelope{
		Success: false,
		Message: fmt.Sprintf("%s not found: %s", resourceType, resourceID),
	})
}

// RespondNotFoundSimple sends a 404 Not Found response with a simple message.
func RespondNotFoundSimple(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Envelope{Success: false, Message: message})
}

// RespondInternalError sends a 500 Internal Server Error response.
// It logs the error with full details but returns a sanitized message to the client.
func RespondInternalError(c *gin.Context, operation string, err error, log *zap.SugaredLogger) {
	if log != nil {
		log.Errorw(fmt.Sprintf("Failed to %s", operation), "error", err)
	}
	c.JSON(http.StatusInternalServerError, Envelope{
		Success: false,
		Message: fmt.Sprintf("failed to %s", operation),
	})
}

// RespondRateLimited sends a 429 with Retry-After and X-RateLimit-* headers.
// The same metadata is repeated in the body for clients that cannot read headers.
func RespondRateLimited(c *gin.Context, resetTime, now time.Time) {
	reset := resetTime.UTC().Format(ISOTimeFormat)
	c.Header(HeaderRetryAfter, strconv.FormatInt(RetryAfterSeconds(resetTime, now), 10))
	c.Header(HeaderRateLimitRemaining, "0")
	c.Header(HeaderRateLimitReset, reset)
	c.JSON(http.StatusTooManyRequests, RateLimitBody{
		Success:   false,
		Message:   MessageRateLimited,
		ResetTime: reset,
		Remaining: 0,
	})
}

// RetryAfterSeconds returns the whole seconds until resetTime, rounded up.
func RetryAfterSeconds(resetTime, now time.Time) int64 {
	d := resetTime.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// RespondSuccess sends a 200 OK envelope with an optional message and payload.
func RespondSuccess(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

// RespondCreated sends a 201 Created envelope with the new resource.
func RespondCreated(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}
