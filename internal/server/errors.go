package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/store"
	"github.com/jonathan/evidentia/internal/types"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing report or scenario.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// HTTPStatus returns the appropriate HTTP status code for an error. A run
// that outlives its budget is a gateway timeout.
func HTTPStatus(err error) int {
	var (
		verr  *ErrValidation
		nferr *ErrNotFound
		inerr *types.InputError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &inerr),
		errors.Is(err, pipeline.ErrNoEvidence), errors.Is(err, pipeline.ErrUnknownMode),
		errors.Is(err, pipeline.ErrTemplateRequired):
		return http.StatusBadRequest
	case errors.As(err, &nferr), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
