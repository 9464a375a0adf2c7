// Package api provides the HTTP admin surface of the authorization engine.
//
// # Overview
//
// The server exposes three route families, each behind the matching scope
// guard from pkg/middleware:
//
//   - /api/v1/platform/...: system role grants, org assignments, and user
//     administration. Reads require any system role; writes require
//     SuperAdmin.
//   - /api/v1/orgs/...: member-facing organization routes. Membership
//     mutations are authorized inside the org service against the caller's
//     own membership (owner/admin rules, last-owner protection, quotas).
//   - /api/v1/groups/...: group routes behind RequireGroupRole. Non-members
//     receive the same 404 as a missing group.
//
// All handlers decode with pkg/httputil and map service errors through
// httputil.WriteDomainError, so the error taxonomy in pkg/authz decides the
// status code in exactly one place.
//
// # Related Packages
//
//   - pkg/middleware: Authentication and scope guards
//   - pkg/platform, pkg/orgs, pkg/groups: Scope authorities
//   - pkg/auth: Users and API tokens
package api
