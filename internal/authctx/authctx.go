// Package authctx resolves a request's AuthContext — which principal is
// acting, as what — and enforces the scope/role checks spec.md §4.9
// describes, backed by internal/cache so repeated checks for the same
// principal don't round-trip to the transactional database every time.
package authctx

import (
	"context"
	"fmt"
	"time"

	"manifold/internal/account"
	"manifold/internal/apierr"
	"manifold/internal/cache"
)

// Kind distinguishes the four AuthContext variants.
type Kind string

const (
	KindSessionUser Kind = "session_user"
	KindApiKey      Kind = "api_key"
	KindBootstrap   Kind = "bootstrap"
	KindDisabled    Kind = "disabled"
)

// AuthContext is the union of ways a request can be authenticated. Exactly
// one of the pointer fields is set, matching Kind.
type AuthContext struct {
	Kind        Kind
	SessionUser *account.User
	ApiKey      *account.ApiKey
	// Bootstrap carries no payload: it's the single-operator,
	// no-accounts-configured-yet mode.
}

// Principal returns a stable identifier for cache-keying and audit
// logging: the user id, the api key id, "bootstrap", or "disabled".
func (a AuthContext) Principal() string {
	switch a.Kind {
	case KindSessionUser:
		if a.SessionUser != nil {
			return "user:" + a.SessionUser.ID
		}
	case KindApiKey:
		if a.ApiKey != nil {
			return "apikey:" + a.ApiKey.ID
		}
	case KindBootstrap:
		return "bootstrap"
	}
	return "disabled"
}

// MembershipLookup is the persistence seam authctx depends on to resolve
// org/project roles. internal/repository implements this against the
// transactional database; tests can supply a fake.
type MembershipLookup interface {
	OrgRole(ctx context.Context, userID, orgID string) (account.Role, bool, error)
	ProjectRole(ctx context.Context, userID, projectID string) (account.Role, bool, error)
}

// Checker enforces scope/role requirements against an AuthContext, caching
// resolved roles under a short TTL keyed by (principal, resource_id), and
// invalidating with a pattern delete on membership change.
type Checker struct {
	lookup MembershipLookup
	cache  cache.Service
	ttl    time.Duration
}

// DefaultAuthCacheTTL is short deliberately: memberships change rarely,
// but a short TTL bounds how long a revoked membership stays effective
// without requiring active invalidation to always fire correctly.
const DefaultAuthCacheTTL = 30 * time.Second

func NewChecker(lookup MembershipLookup, svc cache.Service, ttl time.Duration) *Checker {
	if ttl <= 0 {
		ttl = DefaultAuthCacheTTL
	}
	return &Checker{lookup: lookup, cache: svc, ttl: ttl}
}

// RequireScope enforces that an ApiKey-authenticated AuthContext's scope
// satisfies required. Non-ApiKey contexts (session users, bootstrap) are
// not scope-limited; session users are instead subject to
// RequireOrgRole/RequireProjectAccess.
func (c *Checker) RequireScope(auth AuthContext, required account.Scope) error {
	switch auth.Kind {
	case KindBootstrap:
		return nil
	case KindDisabled:
		return apierr.Unauthorized("no credentials presented")
	case KindApiKey:
		if auth.ApiKey == nil || !auth.ApiKey.Scope.Satisfies(required) {
			return apierr.Forbidden("SCOPE_INSUFFICIENT", fmt.Sprintf("requires %s scope", required))
		}
		return nil
	default:
		return nil
	}
}

func (c *Checker) roleCacheKey(principal, resourceID string) string {
	return "auth:" + principal + ":" + resourceID
}

// RequireOrgRole enforces that auth's principal holds at least required
// role within orgID, consulting the cache before MembershipLookup.
func (c *Checker) RequireOrgRole(ctx context.Context, auth AuthContext, orgID string, required account.Role) error {
	return c.requireRole(ctx, auth, orgID, required, func(ctx context.Context, userID, id string) (account.Role, bool, error) {
		return c.lookup.OrgRole(ctx, userID, id)
	})
}

// RequireProjectAccess enforces that auth's principal holds at least
// required role within projectID.
func (c *Checker) RequireProjectAccess(ctx context.Context, auth AuthContext, projectID string, required account.Role) error {
	return c.requireRole(ctx, auth, projectID, required, func(ctx context.Context, userID, id string) (account.Role, bool, error) {
		return c.lookup.ProjectRole(ctx, userID, id)
	})
}

func (c *Checker) requireRole(ctx context.Context, auth AuthContext, resourceID string, required account.Role, resolve func(context.Context, string, string) (account.Role, bool, error)) error {
	if auth.Kind == KindBootstrap {
		return nil
	}
	if auth.Kind != KindSessionUser || auth.SessionUser == nil {
		return apierr.Unauthorized("session required")
	}

	principal := auth.Principal()
	key := c.roleCacheKey(principal, resourceID)

	role, ok, err := c.cachedRole(ctx, key)
	if err != nil {
		return apierr.Backend(apierr.OriginCache, err)
	}
	if !ok {
		role, ok, err = resolve(ctx, auth.SessionUser.ID, resourceID)
		if err != nil {
			return apierr.Backend(apierr.OriginDatabase, err)
		}
		if ok {
			_ = c.cache.Set(ctx, key, []byte(role.String()), c.ttl)
		}
	}

	if !ok {
		return apierr.Forbidden("SCOPE_INSUFFICIENT", "no membership for this resource")
	}
	if !role.Satisfies(required) {
		return apierr.Forbidden("SCOPE_INSUFFICIENT", fmt.Sprintf("requires %s role", required))
	}
	return nil
}

func (c *Checker) cachedRole(ctx context.Context, key string) (account.Role, bool, error) {
	raw, err := c.cache.Get(ctx, key)
	if err == cache.ErrNotFound {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	role, ok := account.ParseRole(string(raw))
	return role, ok, nil
}

// InvalidatePrincipal clears every cached role decision for a principal,
// called on membership change (spec.md §4.9: `auth:<principal>:*`).
func (c *Checker) InvalidatePrincipal(ctx context.Context, principal string) error {
	_, err := c.cache.DeletePattern(ctx, "auth:"+principal+":*")
	return err
}
