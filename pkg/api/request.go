package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/store"
)

const (
	MessageInvalidBody = "Cuerpo de la petición inválido"
	MessageInternal    = "Error interno del servidor"
)

// bindJSON decodes the request body and answers 400 when it is not valid JSON.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		apiresponses.RespondError(c, &apiresponses.ValidationError{Message: MessageInvalidBody}, nil)
		return false
	}
	return true
}

// parseID parses a record id and answers 400 when it is missing or malformed.
func parseID(c *gin.Context, raw string) (uuid.UUID, bool) {
	if raw == "" {
		apiresponses.RespondError(c, apiresponses.NewValidationError("ID es requerido"), nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		apiresponses.RespondError(c, apiresponses.NewValidationError("ID inválido"), nil)
		return uuid.Nil, false
	}
	return id, true
}

// upstream marks err as a failed database or mail operation.
func upstream(operation string, err error) error {
	return &apiresponses.UpstreamError{Operation: operation, Err: err}
}

// storeError maps store.ErrNotFound to a NotFoundError carrying the client
// message, and everything else to an upstream failure.
func storeError(err error, resource, id, notFound string) error {
	if errors.Is(err, store.ErrNotFound) {
		return &apiresponses.NotFoundError{Resource: resource, ID: id, Message: notFound}
	}
	return upstream("access the database", err)
}
