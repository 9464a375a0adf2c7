package middleware

import (
	"net/http"
	"strings"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/contextkeys"
	"github.com/fleetgrid/fleetgrid/pkg/httputil"
)

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	audit        audit.Logger
	optional     bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware. auditLogger may
// be nil.
func NewAuthMiddleware(tokenManager *auth.TokenManager, auditLogger audit.Logger, optional bool) *AuthMiddleware {
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	return &AuthMiddleware{
		tokenManager: tokenManager,
		audit:        auditLogger,
		optional:     optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.tokenManager.ValidateToken(r.Context(), parts[1])
		if err != nil {
			m.audit.Record(r.Context(), &audit.Event{
				EventType: audit.EventTypeTokenValidateFail,
				Status:    audit.EventStatusFailure,
				IPAddress: getClientIP(r),
				Message:   "token validation failed",
			})
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	ctx := r.Context().Value(contextkeys.AuthKey)
	if ctx == nil {
		return nil
	}
	authCtx, ok := ctx.(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

func getClientIP(r *http.Request) string {
	// X-Forwarded-For wins when behind a proxy
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
