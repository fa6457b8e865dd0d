package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/evidentia/internal/pipeline"
	"github.com/jonathan/evidentia/internal/store"
	"github.com/jonathan/evidentia/internal/types"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "url", Message: "required"}
	assert.Equal(t, "validation error: url - required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestErrNotFound(t *testing.T) {
	err := &ErrNotFound{Resource: "report", ID: "abc"}
	assert.Equal(t, "report not found: abc", err.Error())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no evidence", pipeline.ErrNoEvidence, http.StatusBadRequest},
		{"unknown mode", fmt.Errorf("%w: %q", pipeline.ErrUnknownMode, "x"), http.StatusBadRequest},
		{"template", pipeline.ErrTemplateRequired, http.StatusBadRequest},
		{"input error", &types.InputError{Index: 0, Field: "rawText", Message: "missing"}, http.StatusBadRequest},
		{"stored report missing", store.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", &ErrNotFound{Resource: "scenario", ID: "x"}), http.StatusNotFound},
		{"run budget exceeded", fmt.Errorf("claims: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"canceled", context.Canceled, http.StatusInternalServerError},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
