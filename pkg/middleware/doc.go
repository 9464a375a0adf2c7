// Package middleware provides HTTP middleware for authentication,
// authorization and rate limiting.
//
// # Middleware Ordering Requirements
//
// The guards have strict ordering dependencies. Incorrect order causes
// authorization checks to fail closed with 401 for every request.
//
// REQUIRED ORDERING (outer to inner):
//  1. AuthMiddleware - validates the Bearer token and sets the auth context
//  2. OrgContextMiddleware - resolves {org_id}/{org_slug} into the org context
//  3. Scope guards - RequireSystemRole, RequireOrgAccess, RequireOrgManage,
//     RequireGroupRole
//
// Example:
//
//	router.Use(authMW.Handler)
//	orgRouter.Use(middleware.OrgContextMiddleware(orgService))
//	orgRouter.Handle("/members", middleware.RequireOrgManage(platformSvc)(handler))
//
// Scope guards read the auth context; running them before AuthMiddleware
// means no identity is present and every request is rejected.
//
// # Related Packages
//
//   - pkg/auth: token validation
//   - pkg/platform: system-scope authority
//   - pkg/orgs: organization-scope authority
//   - pkg/groups: group-scope authority
package middleware
