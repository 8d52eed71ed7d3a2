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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	MessageUnauthorized = "unauthorized"
	MessageRateLimited  = "too many requests, please try again later"
	MessageInternal     = "internal server error"
)

// ValidationError reports malformed or missing input. Message names the first violated rule.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError from a format string.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AuthError reports a missing, invalid or expired credential.
// Reason is for logs only; clients get Message, or the generic text when it is empty.
type AuthError struct {
	Reason  string
	Message string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return "authentication failed: " + e.Reason
}

// RateLimitError carries the retry metadata of a denied request.
type RateLimitError struct {
	ResetTime time.Time
	Now       time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded until %s", e.ResetTime.UTC().Format(ISOTimeFormat))
}

// UpstreamError wraps a database or mail provider failure.
type UpstreamError struct {
	Operation string
	Err       error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NotFoundError reports a missing resource. A non-empty Message replaces the
// standard "<resource> not found: <id>" text.
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// RespondError converts err into one of the standard responses.
// Errors outside the taxonomy are treated as upstream failures and never leak their text.
func RespondError(c *gin.Context, err error, log *zap.SugaredLogger) {
	var (
		validationErr *ValidationError
		authErr       *AuthError
		rateErr       *RateLimitError
		notFoundErr   *NotFoundError
		upstreamErr   *UpstreamError
	)
	switch {
	case errors.As(err, &validationErr):
		RespondBadRequest(c, validationErr.Message)
	case errors.As(err, &authErr):
		if log != nil {
			log.Debugw("Authentication failed", "reason", authErr.Reason)
		}
		RespondUnauthorizedWithMessage(c, authErr.Message)
	case errors.As(err, &rateErr):
		RespondRateLimited(c, rateErr.ResetTime, rateErr.Now)
	case errors.As(err, &notFoundErr):
		if notFoundErr.Message != "" {
			RespondNotFoundSimple(c, notFoundErr.Message)
			return
		}
		RespondNotFound(c, notFoundErr.Resource, notFoundErr.ID)
	case errors.As(err, &upstreamErr):
		RespondInternalError(c, upstreamErr.Operation, upstreamErr.Err, log)
	default:
		if log != nil {
			log.Errorw("Unhandled error", "error", err)
		}
		RespondInternalErrorSimple(c, MessageInternal)
	}
}

// RespondInternalErrorSimple sends a 500 response with a simple message.
// Use this when you've already logged the error or don't need detailed logging.
func RespondInternalErrorSimple(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Envelope{Success: false, Message: message})
}
