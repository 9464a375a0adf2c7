// Package groups is the group-scope authority for the collaborative
// location-sharing feature. Group roles share the Owner > Admin > Member >
// Viewer order with org roles but are evaluated independently; nothing in
// this package consults organization membership.
//
// Lookups deliberately collapse "group does not exist" and "user is not a
// member" into one NotFound so callers cannot probe group existence.
package groups
