package api

import (
	"net/http"

	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
)

// currentUser returns the authenticated user or writes a 401.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return nil, false
	}
	return authCtx.User, true
}

// getCurrentUser returns the authenticated user's own account.
func (s *Server) getCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, user)
}
