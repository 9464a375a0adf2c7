package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/fleetgrid/fleetgrid/pkg/audit"
	"github.com/fleetgrid/fleetgrid/pkg/auth"
	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/contextkeys"
	"github.com/fleetgrid/fleetgrid/pkg/groups"
	"github.com/fleetgrid/fleetgrid/pkg/middleware"
	"github.com/fleetgrid/fleetgrid/pkg/orgs"
	"github.com/fleetgrid/fleetgrid/pkg/platform"
)

// fakeUsers implements UserService in memory.
type fakeUsers struct {
	byID   map[int64]*auth.User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[int64]*auth.User), nextID: 1}
}

func (f *fakeUsers) CreateUser(ctx context.Context, username, email, fullName string, isBot bool) (*auth.User, error) {
	if username == "" {
		return nil, authz.Validation("username is required")
	}
	for _, u := range f.byID {
		if u.Username == username {
			return nil, authz.Conflict("username %q is already taken", username)
		}
	}
	u := &auth.User{ID: f.nextID, Username: username, Email: email, FullName: fullName, IsBot: isBot, IsActive: true}
	f.byID[u.ID] = u
	f.nextID++
	return u, nil
}

func (f *fakeUsers) GetUser(ctx context.Context, userID int64) (*auth.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return nil, authz.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeUsers) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, authz.NotFound("user not found")
}

func (f *fakeUsers) DeactivateUser(ctx context.Context, userID int64) error {
	u, ok := f.byID[userID]
	if !ok {
		return authz.NotFound("user not found")
	}
	u.IsActive = false
	return nil
}

// fakeTokens implements TokenService in memory.
type fakeTokens struct {
	byID   map[int64]*auth.APIToken
	nextID int64
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byID: make(map[int64]*auth.APIToken), nextID: 1}
}

func (f *fakeTokens) CreateToken(ctx context.Context, userID int64, name, description string, expiresAt *time.Time) (*auth.APIToken, string, error) {
	if name == "" {
		return nil, "", authz.Validation("token name is required")
	}
	t := &auth.APIToken{ID: f.nextID, UserID: userID, Name: name, Description: description, ExpiresAt: expiresAt, TokenPrefix: auth.TokenPrefix + "testpref"}
	f.byID[t.ID] = t
	f.nextID++
	return t, auth.TokenPrefix + "testpref-plaintext", nil
}

func (f *fakeTokens) ListUserTokens(ctx context.Context, userID int64) ([]*auth.APIToken, error) {
	var out []*auth.APIToken
	for _, t := range f.byID {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTokens) RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error {
	if _, ok := f.byID[tokenID]; !ok {
		return authz.NotFound("token not found")
	}
	delete(f.byID, tokenID)
	return nil
}

// fakePlatform implements PlatformService.
type fakePlatform struct {
	roles       map[int64][]authz.SystemRole
	assignments map[int64][]int64
	manageAll   map[int64]bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		roles:       make(map[int64][]authz.SystemRole),
		assignments: make(map[int64][]int64),
		manageAll:   make(map[int64]bool),
	}
}

func (f *fakePlatform) HighestRole(ctx context.Context, userID int64) (authz.SystemRole, bool, error) {
	roles := f.roles[userID]
	if len(roles) == 0 {
		return "", false, nil
	}
	best := roles[0]
	for _, r := range roles[1:] {
		if r.Priority() > best.Priority() {
			best = r
		}
	}
	return best, true, nil
}

func (f *fakePlatform) HasOrgAccess(ctx context.Context, userID, orgID int64) (bool, error) {
	if f.manageAll[userID] {
		return true, nil
	}
	for _, id := range f.assignments[userID] {
		if id == orgID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePlatform) CanManageOrg(ctx context.Context, userID, orgID int64) (bool, error) {
	return f.manageAll[userID], nil
}

func (f *fakePlatform) AddRole(ctx context.Context, userID int64, role authz.SystemRole, grantedBy int64) (*platform.SystemRoleGrant, error) {
	if !role.Valid() {
		return nil, authz.Validation("unknown system role: %s", role)
	}
	f.roles[userID] = append(f.roles[userID], role)
	return &platform.SystemRoleGrant{ID: 1, UserID: userID, Role: role, GrantedBy: &grantedBy}, nil
}

func (f *fakePlatform) RemoveRole(ctx context.Context, userID int64, role authz.SystemRole) error {
	roles := f.roles[userID]
	for i, r := range roles {
		if r == role {
			f.roles[userID] = append(roles[:i], roles[i+1:]...)
			return nil
		}
	}
	return authz.NotFound("grant not found")
}

func (f *fakePlatform) GetUserRoles(ctx context.Context, userID int64) ([]authz.SystemRole, error) {
	return f.roles[userID], nil
}

func (f *fakePlatform) ListGrants(ctx context.Context, userID int64) ([]platform.SystemRoleGrant, error) {
	var grants []platform.SystemRoleGrant
	for _, r := range f.roles[userID] {
		grants = append(grants, platform.SystemRoleGrant{UserID: userID, Role: r})
	}
	return grants, nil
}

func (f *fakePlatform) AssignOrg(ctx context.Context, userID, orgID int64, assignedBy int64) (*platform.OrgAssignment, error) {
	f.assignments[userID] = append(f.assignments[userID], orgID)
	return &platform.OrgAssignment{UserID: userID, OrganizationID: orgID, AssignedBy: &assignedBy}, nil
}

func (f *fakePlatform) UnassignOrg(ctx context.Context, userID, orgID int64) error {
	ids := f.assignments[userID]
	for i, id := range ids {
		if id == orgID {
			f.assignments[userID] = append(ids[:i], ids[i+1:]...)
			return nil
		}
	}
	return authz.NotFound("assignment not found")
}

func (f *fakePlatform) GetAssignedOrgs(ctx context.Context, userID int64) ([]int64, error) {
	return f.assignments[userID], nil
}

// fakeOrgs implements OrgService.
type fakeOrgs struct {
	byID    map[int64]*orgs.Organization
	members map[int64]map[int64]*orgs.OrgMembership
	roles   map[int64]map[int64]*orgs.Role
	nextID  int64
}

func newFakeOrgs() *fakeOrgs {
	return &fakeOrgs{
		byID:    make(map[int64]*orgs.Organization),
		members: make(map[int64]map[int64]*orgs.OrgMembership),
		roles:   make(map[int64]map[int64]*orgs.Role),
		nextID:  1,
	}
}

func (f *fakeOrgs) GetOrganization(ctx context.Context, id int64) (*orgs.Organization, error) {
	org, ok := f.byID[id]
	if !ok {
		return nil, authz.NotFound("organization not found")
	}
	return org, nil
}

func (f *fakeOrgs) GetOrganizationBySlug(ctx context.Context, slug string) (*orgs.Organization, error) {
	for _, org := range f.byID {
		if org.Slug == slug {
			return org, nil
		}
	}
	return nil, authz.NotFound("organization not found")
}

func (f *fakeOrgs) CreateOrganization(ctx context.Context, org *orgs.Organization, creatorID int64) error {
	if org.Name == "" {
		return authz.Validation("organization name is required")
	}
	org.ID = f.nextID
	org.Slug = strings.ToLower(org.Name)
	f.nextID++
	f.byID[org.ID] = org
	f.setMember(org.ID, creatorID, authz.OrgRoleOwner)
	return nil
}

func (f *fakeOrgs) DeleteOrganization(ctx context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return authz.NotFound("organization not found")
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeOrgs) setMember(orgID, userID int64, role authz.OrgRole) {
	if f.members[orgID] == nil {
		f.members[orgID] = make(map[int64]*orgs.OrgMembership)
	}
	f.members[orgID][userID] = &orgs.OrgMembership{OrganizationID: orgID, UserID: userID, Role: role}
}

func (f *fakeOrgs) GetMember(ctx context.Context, orgID, userID int64) (*orgs.OrgMembership, error) {
	m, ok := f.members[orgID][userID]
	if !ok {
		return nil, authz.NotFound("membership not found")
	}
	return m, nil
}

func (f *fakeOrgs) ListMembers(ctx context.Context, orgID int64) ([]*orgs.OrgMembership, error) {
	var out []*orgs.OrgMembership
	for _, m := range f.members[orgID] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeOrgs) AddMember(ctx context.Context, callerID, orgID, userID int64, role authz.OrgRole, permissions []string) (*orgs.OrgMembership, error) {
	caller, ok := f.members[orgID][callerID]
	if !ok || !authz.HasSufficientRole(caller.Role, authz.OrgRoleAdmin) {
		return nil, authz.Forbidden("only owners and admins can manage members")
	}
	if _, exists := f.members[orgID][userID]; exists {
		return nil, authz.Conflict("user is already a member")
	}
	f.setMember(orgID, userID, role)
	return f.members[orgID][userID], nil
}

func (f *fakeOrgs) UpdateMember(ctx context.Context, callerID, orgID, userID int64, newRole *authz.OrgRole, newPermissions []string) (*orgs.OrgMembership, error) {
	caller, ok := f.members[orgID][callerID]
	if !ok || !authz.HasSufficientRole(caller.Role, authz.OrgRoleAdmin) {
		return nil, authz.Forbidden("only owners and admins can manage members")
	}
	m, ok := f.members[orgID][userID]
	if !ok {
		return nil, authz.NotFound("membership not found")
	}
	if newRole != nil {
		m.Role = *newRole
	}
	if newPermissions != nil {
		m.Permissions = newPermissions
	}
	return m, nil
}

func (f *fakeOrgs) RemoveMember(ctx context.Context, callerID, orgID, userID int64) error {
	caller, ok := f.members[orgID][callerID]
	if !ok || !authz.HasSufficientRole(caller.Role, authz.OrgRoleAdmin) {
		return authz.Forbidden("only owners and admins can manage members")
	}
	if _, ok := f.members[orgID][userID]; !ok {
		return authz.NotFound("membership not found")
	}
	delete(f.members[orgID], userID)
	return nil
}

func (f *fakeOrgs) CreateRole(ctx context.Context, callerID, orgID int64, req *orgs.CreateRoleRequest) (*orgs.Role, error) {
	caller, ok := f.members[orgID][callerID]
	if !ok || caller.Role != authz.OrgRoleOwner {
		return nil, authz.Forbidden("only owners can manage custom roles")
	}
	if authz.IsSystemRoleName(req.Name) {
		return nil, authz.Conflict("role name %q is reserved", req.Name)
	}
	role := &orgs.Role{ID: f.nextID, OrganizationID: orgID, Name: req.Name, DisplayName: req.DisplayName, Permissions: req.Permissions}
	f.nextID++
	if f.roles[orgID] == nil {
		f.roles[orgID] = make(map[int64]*orgs.Role)
	}
	f.roles[orgID][role.ID] = role
	return role, nil
}

func (f *fakeOrgs) DeleteRole(ctx context.Context, callerID, orgID, roleID int64) error {
	caller, ok := f.members[orgID][callerID]
	if !ok || caller.Role != authz.OrgRoleOwner {
		return authz.Forbidden("only owners can manage custom roles")
	}
	if _, ok := f.roles[orgID][roleID]; !ok {
		return authz.NotFound("role not found")
	}
	delete(f.roles[orgID], roleID)
	return nil
}

func (f *fakeOrgs) GetRole(ctx context.Context, orgID, roleID int64) (*orgs.Role, error) {
	role, ok := f.roles[orgID][roleID]
	if !ok {
		return nil, authz.NotFound("role not found")
	}
	return role, nil
}

func (f *fakeOrgs) ListRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error) {
	var out []*orgs.Role
	for _, role := range f.roles[orgID] {
		out = append(out, role)
	}
	return out, nil
}

func (f *fakeOrgs) ListSystemRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error) {
	return f.listRolesFiltered(orgID, true), nil
}

func (f *fakeOrgs) ListCustomRoles(ctx context.Context, orgID int64) ([]*orgs.Role, error) {
	return f.listRolesFiltered(orgID, false), nil
}

func (f *fakeOrgs) listRolesFiltered(orgID int64, system bool) []*orgs.Role {
	var out []*orgs.Role
	for _, role := range f.roles[orgID] {
		if role.IsSystemRole == system {
			out = append(out, role)
		}
	}
	return out
}

// fakeGroups implements GroupService.
type fakeGroups struct {
	byID    map[int64]*groups.Group
	members map[int64]map[int64]*groups.GroupMembership
	nextID  int64
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{
		byID:    make(map[int64]*groups.Group),
		members: make(map[int64]map[int64]*groups.GroupMembership),
		nextID:  1,
	}
}

func (f *fakeGroups) GetMembership(ctx context.Context, groupID, userID int64) (*groups.GroupMembership, error) {
	m, ok := f.members[groupID][userID]
	if !ok {
		return nil, authz.NotFound("group not found or you are not a member")
	}
	return m, nil
}

func (f *fakeGroups) CreateGroup(ctx context.Context, name string, ownerID int64) (*groups.Group, error) {
	if name == "" {
		return nil, authz.Validation("group name is required")
	}
	g := &groups.Group{ID: f.nextID, Name: name, OwnerID: ownerID}
	f.nextID++
	f.byID[g.ID] = g
	f.setMember(g.ID, ownerID, authz.GroupRoleOwner)
	return g, nil
}

func (f *fakeGroups) setMember(groupID, userID int64, role authz.GroupRole) {
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[int64]*groups.GroupMembership)
	}
	f.members[groupID][userID] = &groups.GroupMembership{GroupID: groupID, UserID: userID, Role: role}
}

func (f *fakeGroups) GetGroup(ctx context.Context, groupID int64) (*groups.Group, error) {
	g, ok := f.byID[groupID]
	if !ok {
		return nil, authz.NotFound("group not found")
	}
	return g, nil
}

func (f *fakeGroups) DeleteGroup(ctx context.Context, groupID int64) error {
	if _, ok := f.byID[groupID]; !ok {
		return authz.NotFound("group not found")
	}
	delete(f.byID, groupID)
	delete(f.members, groupID)
	return nil
}

func (f *fakeGroups) AddMember(ctx context.Context, groupID, userID int64, role authz.GroupRole) (*groups.GroupMembership, error) {
	if _, ok := f.members[groupID][userID]; ok {
		return nil, authz.Conflict("user is already a member")
	}
	f.setMember(groupID, userID, role)
	return f.members[groupID][userID], nil
}

func (f *fakeGroups) RemoveMember(ctx context.Context, groupID, userID int64) error {
	if _, ok := f.members[groupID][userID]; !ok {
		return authz.NotFound("group not found or you are not a member")
	}
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeGroups) ListMembers(ctx context.Context, groupID int64) ([]*groups.GroupMembership, error) {
	var out []*groups.GroupMembership
	for _, m := range f.members[groupID] {
		out = append(out, m)
	}
	return out, nil
}

// captureAudit records audit events for assertions.
type captureAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (c *captureAudit) Record(ctx context.Context, event *audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureAudit) Close() error { return nil }

func (c *captureAudit) byType(eventType audit.EventType) []*audit.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*audit.Event
	for _, e := range c.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// testEnv bundles a server and its fakes.
type testEnv struct {
	server   *Server
	users    *fakeUsers
	tokens   *fakeTokens
	platform *fakePlatform
	orgs     *fakeOrgs
	groups   *fakeGroups
	audit    *captureAudit
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Optional auth middleware over an idle mock DB; tests inject the auth
	// context directly on the request.
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		users:    newFakeUsers(),
		tokens:   newFakeTokens(),
		platform: newFakePlatform(),
		orgs:     newFakeOrgs(),
		groups:   newFakeGroups(),
		audit:    &captureAudit{},
	}
	env.server = NewServer(Deps{
		Users:    env.users,
		Tokens:   env.tokens,
		Platform: env.platform,
		Orgs:     env.orgs,
		Groups:   env.groups,
		Auth:     middleware.NewAuthMiddleware(auth.NewTokenManager(db, nil), nil, true),
		Audit:    env.audit,
	})
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != 0 {
		authCtx := &auth.AuthContext{User: &auth.User{ID: userID, Username: "user", IsActive: true}}
		req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}
