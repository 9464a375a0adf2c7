package authz

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		status    int
	}{
		{"unauthorized", Unauthorized("no auth context"), IsUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("insufficient role"), IsForbidden, http.StatusForbidden},
		{"not found", NotFound("organization %d not found", 7), IsNotFound, http.StatusNotFound},
		{"conflict", Conflict("cannot remove last super admin"), IsConflict, http.StatusConflict},
		{"validation", Validation("unknown permission: %s", "bogus"), IsValidation, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.predicate(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestErrorPredicatesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("remove member: %w", Conflict("cannot demote last owner"))
	assert.True(t, IsConflict(err))
	assert.False(t, IsForbidden(err))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestHTTPStatusUnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("db down")))
}

func TestErrorMessages(t *testing.T) {
	err := NotFound("group %d not found", 42)
	assert.Equal(t, "group 42 not found", err.Error())
}
