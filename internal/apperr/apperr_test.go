package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad %s", "input"), ValidationFailed},
		{"wrapped not found", fmt.Errorf("load report: %w", NotFoundf("report not found")), NotFound},
		{"plain error", errors.New("disk on fire"), Internal},
		{"nil", nil, Internal},
		{"internal wrap", Wrap(errors.New("boom"), "query failed"), Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("assign: %w", NotFoundf("worker not found"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, ValidationFailed.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, AuthenticationFailed.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, AuthorizationDenied.HTTPStatus())
	assert.Equal(t, http.StatusConflict, Conflict.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, NotFound.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Internal.HTTPStatus())
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Wrap(errors.New("UNIQUE constraint failed: secret_table"), "insert")
	assert.Equal(t, "internal server error", PublicMessage(err, false))
	assert.Contains(t, PublicMessage(err, true), "secret_table")
	assert.Equal(t, "email already registered", PublicMessage(Conflictf("email already registered"), false))
}
