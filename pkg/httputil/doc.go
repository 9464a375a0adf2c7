// Package httputil carries the HTTP plumbing shared by every API handler.
//
// # Responses
//
// Success responses are raw JSON objects; error responses are always
// {"error": message}:
//
//	httputil.WriteSuccess(w, org)
//	httputil.WriteCreated(w, grant)
//	httputil.WriteNotFoundError(w, "organization not found")
//
// WriteDomainError maps service-layer errors from pkg/authz to status
// codes, masking anything unclassified as a generic 500:
//
//	org, err := s.orgs.GetOrganization(ctx, orgID)
//	if err != nil {
//		httputil.WriteDomainError(w, err)
//		return
//	}
//
// # Request parsing
//
// The *OrError variants write the 400 themselves so handlers read as a
// straight line:
//
//	orgID, ok := httputil.ParsePathInt64OrError(w, r, "org_id")
//	if !ok {
//		return
//	}
//	var req addMemberRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return
//	}
//
// # Middleware
//
// Router-agnostic middleware for the outer handler chain:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.RecoveryMiddleware,
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(apiHandler)
//
// Authentication and scope guards live in pkg/middleware; they depend on
// the router and the domain types, which this package deliberately does
// not.
package httputil
