package util_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/live-support/pkg/util"
)

func TestToDomainError_PassesThroughDomainError(t *testing.T) {
	original := util.NewConflict("already active", map[string]any{"request_id": "r1"})

	mapped := util.ToDomainError(original)
	require.NotNil(t, mapped)
	assert.Equal(t, "CONFLICT", mapped.Code)
	assert.Equal(t, http.StatusConflict, mapped.HTTPStatus)
	assert.Equal(t, "r1", mapped.Details["request_id"])
}

func TestToDomainError_UnwrapsWrappedDomainError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", util.NewForbidden("not yours"))

	mapped := util.ToDomainError(wrapped)
	require.NotNil(t, mapped)
	assert.Equal(t, "FORBIDDEN", mapped.Code)
}

func TestToDomainError_MapsNoRowsToNotFound(t *testing.T) {
	mapped := util.ToDomainError(pgx.ErrNoRows)
	require.NotNil(t, mapped)
	assert.Equal(t, "NOT_FOUND", mapped.Code)
	assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestToDomainError_DefaultsToInternal(t *testing.T) {
	mapped := util.ToDomainError(errors.New("boom"))
	require.NotNil(t, mapped)
	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
}

func TestToDomainError_NilIsNil(t *testing.T) {
	assert.Nil(t, util.ToDomainError(nil))
}

func TestNewInvalidState_UsesUnprocessableEntity(t *testing.T) {
	err := util.NewInvalidState("request is not in progress", map[string]any{"status": "TIMEOUT"})
	mapped := util.ToDomainError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, "INVALID_STATE", mapped.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, mapped.HTTPStatus)
}
