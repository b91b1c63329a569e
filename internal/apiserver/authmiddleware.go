package apiserver

import (
	"context"

	"manifold/internal/account"
	"manifold/internal/apierr"
	"manifold/internal/authctx"
)

// authCtxKey is the request-context key the (out-of-scope, spec.md §1)
// session/API-key middleware is expected to set before a request reaches
// any handler in this package: WithAuthContext/AuthContextFrom are the
// seam between that middleware and the authorization checks here.
type authCtxKey struct{}

// WithAuthContext attaches a resolved AuthContext to ctx.
func WithAuthContext(ctx context.Context, auth authctx.AuthContext) context.Context {
	return context.WithValue(ctx, authCtxKey{}, auth)
}

// AuthContextFrom reads back the AuthContext WithAuthContext attached, or
// the Disabled context if none was ever set.
func AuthContextFrom(ctx context.Context) authctx.AuthContext {
	if auth, ok := ctx.Value(authCtxKey{}).(authctx.AuthContext); ok {
		return auth
	}
	return authctx.AuthContext{Kind: authctx.KindDisabled}
}

// authorizeProjectRead enforces read access to projectID for the caller
// already attached to ctx, using whichever check applies to their
// AuthContext kind (spec.md §4.9).
func authorizeProjectRead(ctx context.Context, checker *authctx.Checker, projectID string) error {
	auth := AuthContextFrom(ctx)
	if auth.Kind == authctx.KindApiKey {
		return checker.RequireScope(auth, account.ScopeRead)
	}
	if err := checker.RequireProjectAccess(ctx, auth, projectID, account.RoleViewer); err != nil {
		return err
	}
	return nil
}

// authorizeIngest enforces ingest access for an OTLP export request.
func authorizeIngest(ctx context.Context, checker *authctx.Checker, projectID string) error {
	auth := AuthContextFrom(ctx)
	if auth.Kind == authctx.KindApiKey {
		return checker.RequireScope(auth, account.ScopeIngest)
	}
	if auth.Kind == authctx.KindDisabled {
		return apierr.Unauthorized("missing credentials")
	}
	return checker.RequireProjectAccess(ctx, auth, projectID, account.RoleMember)
}
