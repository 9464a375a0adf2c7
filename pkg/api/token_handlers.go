package api

import (
	"net/http"
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/httputil"
)

// CreateTokenRequest is the request body for creating an API token.
type CreateTokenRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// CreateTokenResponse carries the plaintext token. It is returned exactly
// once; only the hash survives server side.
type CreateTokenResponse struct {
	Token    string      `json:"token"`
	APIToken interface{} `json:"api_token"`
}

func (s *Server) createToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var req CreateTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	apiToken, plaintext, err := s.tokens.CreateToken(r.Context(), user.ID, req.Name, req.Description, req.ExpiresAt)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, CreateTokenResponse{Token: plaintext, APIToken: apiToken})
}

func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	tokens, err := s.tokens.ListUserTokens(r.Context(), user.ID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// RevokeTokenRequest is the optional request body for revoking a token.
type RevokeTokenRequest struct {
	Reason string `json:"reason,omitempty"`
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	user, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "token_id")
	if !ok {
		return
	}

	var req RevokeTokenRequest
	if r.Body != nil && r.ContentLength > 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	}

	if err := s.tokens.RevokeToken(r.Context(), tokenID, user.ID, req.Reason); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
