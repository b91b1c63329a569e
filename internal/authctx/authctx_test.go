package authctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"manifold/internal/account"
	"manifold/internal/apierr"
	"manifold/internal/cache"
)

type fakeLookup struct {
	orgRoles     map[string]account.Role
	projectRoles map[string]account.Role
	calls        int
}

func (f *fakeLookup) OrgRole(_ context.Context, userID, orgID string) (account.Role, bool, error) {
	f.calls++
	r, ok := f.orgRoles[userID+":"+orgID]
	return r, ok, nil
}

func (f *fakeLookup) ProjectRole(_ context.Context, userID, projectID string) (account.Role, bool, error) {
	f.calls++
	r, ok := f.projectRoles[userID+":"+projectID]
	return r, ok, nil
}

func newChecker(lookup *fakeLookup) *Checker {
	return NewChecker(lookup, cache.NewMemoryService(), 0)
}

func TestRequireScopeEnforcesApiKeyScope(t *testing.T) {
	c := newChecker(&fakeLookup{})
	auth := AuthContext{Kind: KindApiKey, ApiKey: &account.ApiKey{ID: "k1", Scope: account.ScopeIngest}}

	assert.NoError(t, c.RequireScope(auth, account.ScopeRead))
	err := c.RequireScope(auth, account.ScopeWrite)
	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "SCOPE_INSUFFICIENT", apiErr.Code)
}

func TestRequireScopeBootstrapAlwaysPasses(t *testing.T) {
	c := newChecker(&fakeLookup{})
	auth := AuthContext{Kind: KindBootstrap}
	assert.NoError(t, c.RequireScope(auth, account.ScopeFull))
}

func TestRequireOrgRoleCachesResolution(t *testing.T) {
	lookup := &fakeLookup{orgRoles: map[string]account.Role{"u1:org1": account.RoleAdmin}}
	c := newChecker(lookup)
	auth := AuthContext{Kind: KindSessionUser, SessionUser: &account.User{ID: "u1"}}
	ctx := context.Background()

	require.NoError(t, c.RequireOrgRole(ctx, auth, "org1", account.RoleMember))
	require.NoError(t, c.RequireOrgRole(ctx, auth, "org1", account.RoleMember))
	assert.Equal(t, 1, lookup.calls, "second check should be served from cache")
}

func TestRequireOrgRoleDeniesInsufficientRole(t *testing.T) {
	lookup := &fakeLookup{orgRoles: map[string]account.Role{"u1:org1": account.RoleViewer}}
	c := newChecker(lookup)
	auth := AuthContext{Kind: KindSessionUser, SessionUser: &account.User{ID: "u1"}}

	err := c.RequireOrgRole(context.Background(), auth, "org1", account.RoleAdmin)
	require.Error(t, err)
}

func TestInvalidatePrincipalForcesRelookup(t *testing.T) {
	lookup := &fakeLookup{orgRoles: map[string]account.Role{"u1:org1": account.RoleAdmin}}
	c := newChecker(lookup)
	auth := AuthContext{Kind: KindSessionUser, SessionUser: &account.User{ID: "u1"}}
	ctx := context.Background()

	require.NoError(t, c.RequireOrgRole(ctx, auth, "org1", account.RoleMember))
	require.NoError(t, c.InvalidatePrincipal(ctx, auth.Principal()))
	require.NoError(t, c.RequireOrgRole(ctx, auth, "org1", account.RoleMember))
	assert.Equal(t, 2, lookup.calls)
}

func TestRequireProjectAccessNoMembershipIsForbidden(t *testing.T) {
	c := newChecker(&fakeLookup{})
	auth := AuthContext{Kind: KindSessionUser, SessionUser: &account.User{ID: "u1"}}
	err := c.RequireProjectAccess(context.Background(), auth, "proj1", account.RoleViewer)
	require.Error(t, err)
}
