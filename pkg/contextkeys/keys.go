// Package contextkeys defines every context key the application uses.
// Keeping them in one leaf package avoids import cycles between the
// middleware that sets values and the packages that read them, and makes
// each key's producer and consumer discoverable.
package contextkeys

import "context"

// Key is a distinct string type so application keys can never collide
// with keys from other packages.
type Key string

const (
	// AuthKey holds the *auth.AuthContext for the authenticated caller.
	// Set by middleware.AuthMiddleware; read by handlers and scope guards.
	AuthKey Key = "auth_context"

	// OrgKey holds the *orgs.Organization resolved from the {org_id}
	// path variable. Set by middleware.OrgContextMiddleware; read by
	// org-scoped handlers and guards.
	OrgKey Key = "organization"

	// RequestIDKey holds the request ID string. Set by
	// httputil.RequestIDMiddleware; read by the audit trail and logs.
	RequestIDKey Key = "request_id"

	// UserIDKey holds the caller's user ID as a string, for log
	// correlation where the full auth context is unavailable.
	UserIDKey Key = "user_id"

	// LoggerKey holds a *observability.Logger scoped to the request.
	LoggerKey Key = "logger"

	// AuditLoggerKey holds the audit.Logger for handlers that record
	// events outside the guard path.
	AuditLoggerKey Key = "audit_logger"

	// RequestStartTimeKey holds the time.Time the request arrived, for
	// audit event durations.
	RequestStartTimeKey Key = "request_start_time"
)

// The With* helpers take interface{} so this package needs no imports
// from the packages whose types it carries.

func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

func WithRequestStartTime(ctx context.Context, startTime interface{}) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, startTime)
}

// GetRequestID returns the request ID, or "" when unset.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID returns the caller's user ID, or "" when unset.
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
