// Package orgs is the organization-scope authority: organizations, their
// memberships (Owner > Admin > Member > Viewer plus a free-form permission
// set per member) and org-defined custom roles.
//
// Membership mutations carry their own caller guards. Only Owner and Admin
// callers may mutate other members, an Admin may never touch another Admin
// or an Owner, and no organization is ever left without an Owner. The
// last-owner guard is a single conditional statement at the storage
// boundary, so concurrent demotions cannot both pass the check.
package orgs
