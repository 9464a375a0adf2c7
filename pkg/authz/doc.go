// Package authz contains the building blocks shared by all three
// authorization scopes: the typed error taxonomy returned by authorization
// decisions, the ranked role vocabularies (system, organization, group),
// the permission catalog validator, and the optional short-lived read cache
// used in front of the membership stores.
//
// The package is deliberately free of HTTP and SQL concerns; pkg/platform,
// pkg/orgs and pkg/groups build on it.
package authz
