package xerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		status   int
	}{
		{Validation("amount", "must be positive"), ErrValidation, http.StatusBadRequest},
		{NotFound("review item", "r-1"), ErrNotFound, http.StatusNotFound},
		{Conflict("review item", "r-1", "status %s is final", "APPROVED"), ErrConflict, http.StatusConflict},
		{PolicyViolation("u-1", "self approval"), ErrPolicyViolation, http.StatusForbidden},
		{DependencyUnavailable("narrative", errors.New("timeout")), ErrDependencyUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("operation failed: %w", tc.err)
		assert.ErrorIs(t, wrapped, tc.sentinel)
		assert.Equal(t, tc.status, HTTPStatus(wrapped))
	}
}

func TestHTTPStatus_Unknown(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestDependencyUnavailable_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := DependencyUnavailable("redis", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "redis")
}

func TestConflictError_As(t *testing.T) {
	err := fmt.Errorf("approve: %w", Conflict("review item", "r-9", "version mismatch"))

	var conflict *ConflictError
	assert.True(t, errors.As(err, &conflict))
	assert.Equal(t, "r-9", conflict.ID)
}
