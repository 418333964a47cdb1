package errorbank

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{Unauthorized("nope"), http.StatusUnauthorized, codes.Unauthenticated},
		{NotFound("gone"), http.StatusNotFound, codes.NotFound},
		{Conflict("exists"), http.StatusConflict, codes.AlreadyExists},
		{Unprocessable("invalid"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Configuration("no secret"), http.StatusInternalServerError, codes.FailedPrecondition},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.StatusCode(), string(tc.err.Kind()))
		assert.Equal(t, tc.code, tc.err.GRPCCode(), string(tc.err.Kind()))
	}
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("root cause")
	err := Internal("wrapped", WithCause(cause))

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "root cause")
}

func TestFrom(t *testing.T) {
	original := BadRequest("typed")
	assert.Same(t, original, From(original))

	wrapped := From(errors.New("plain"))
	require.NotNil(t, wrapped)
	assert.Equal(t, KindInternal, wrapped.Kind())

	assert.Nil(t, From(nil))
}

func TestDetails(t *testing.T) {
	err := BadRequest("invalid field",
		WithDetail("field", "amount"),
		WithDetails(map[string]any{"reason": "negative"}),
	)

	assert.Equal(t, "amount", err.Details()["field"])
	assert.Equal(t, "negative", err.Details()["reason"])
}
