// Package platform manages platform-wide system roles and their
// organization assignments: which users hold SuperAdmin, OrgAdmin,
// OrgManager, Support or Viewer, and which organizations the scoped admin
// roles are bound to.
//
// The package enforces two global invariants: the set of SuperAdmin holders
// never drops below one, and an org assignment only exists for a user who
// holds a role that requires one. Both are backed by single conditional SQL
// statements so concurrent administrative mutation cannot slip past them.
package platform
