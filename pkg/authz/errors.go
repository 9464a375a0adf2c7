package authz

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an authorization failure.
type Code string

const (
	// CodeUnauthorized means no authentication context was present.
	// Seeing this in production is a middleware-ordering defect.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden means the caller is authenticated but the held role or
	// scope is insufficient for the operation.
	CodeForbidden Code = "forbidden"
	// CodeNotFound means the target organization, group, role or membership
	// is absent. Group-scope checks also return this when the caller is not
	// a member, so membership existence is not leaked.
	CodeNotFound Code = "not_found"
	// CodeConflict means an invariant would be violated: last owner, last
	// super admin, duplicate or reserved role name, role still in use,
	// duplicate assignment.
	CodeConflict Code = "conflict"
	// CodeValidation means the input itself is invalid: unknown permission
	// token, missing prerequisite role.
	CodeValidation Code = "validation"
)

// Error is the typed failure returned by every authorization primitive.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Unauthorized returns an authorization error with CodeUnauthorized.
func Unauthorized(message string) error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Forbidden returns an authorization error with CodeForbidden.
func Forbidden(format string, args ...interface{}) error {
	return &Error{Code: CodeForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns an authorization error with CodeNotFound.
func NotFound(format string, args ...interface{}) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns an authorization error with CodeConflict.
func Conflict(format string, args ...interface{}) error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation returns an authorization error with CodeValidation.
func Validation(format string, args ...interface{}) error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func hasCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

// IsUnauthorized reports whether err carries CodeUnauthorized.
func IsUnauthorized(err error) bool { return hasCode(err, CodeUnauthorized) }

// IsForbidden reports whether err carries CodeForbidden.
func IsForbidden(err error) bool { return hasCode(err, CodeForbidden) }

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsConflict reports whether err carries CodeConflict.
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsValidation reports whether err carries CodeValidation.
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// HTTPStatus maps an error to the HTTP status the API layer should write.
// Non-authorization errors map to 500.
func HTTPStatus(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
