package tenancy

import (
	"context"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/audit"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
)

// Navigator is the navigation collaborator of a session.
type Navigator interface {
	CurrentPath() string
	Replace(path string)
}

// Guard applies the tenant lock table to navigations.
type Guard struct {
	lobby LobbyRoutes
	log   *zap.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLobby overrides the lobby routes.
func WithLobby(routes LobbyRoutes) GuardOption {
	return func(g *Guard) {
		if len(routes) > 0 {
			g.lobby = routes
		}
	}
}

// WithLogger overrides the guard logger.
func WithLogger(l *zap.Logger) GuardOption {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGuard builds a guard with the default lobby.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{lobby: DefaultLobby, log: obs.Logger()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Lobby returns the configured lobby routes.
func (g *Guard) Lobby() LobbyRoutes { return g.lobby }

// Evaluate decides the navigation to path without applying any effect.
func (g *Guard) Evaluate(authenticated bool, lockedTenantID, path string) Decision {
	return Decide(State{
		Authenticated:  authenticated,
		LockedTenantID: lockedTenantID,
		Target:         ParseTarget(path, g.lobby),
	})
}

// Navigate decides the navigation to nav's current path and applies it: a
// SetLock writes the session lock once, a Redirect replaces the location
// once. When a concurrent navigation of the same session locked a different
// tenant first, the decision is taken again against that lock. Effects are
// fire and forget; failures are logged and the decision is returned
// regardless.
func (g *Guard) Navigate(ctx context.Context, sess *Session, authenticated bool, nav Navigator) Decision {
	path := nav.CurrentPath()
	if !authenticated || sess == nil {
		d := Decision{Kind: NoOp}
		obs.ObserveGuardDecision(string(d.Kind))
		return d
	}

	d := g.Evaluate(true, sess.Locked(ctx), path)
	if d.Kind == SetLock {
		stored, set, err := sess.Lock(ctx, d.TenantID)
		switch {
		case err != nil:
			obs.IncLockWriteFailures()
			g.log.Error("tenant lock write failed",
				zap.String("session_id", sess.ID()),
				zap.String("tenant_id", d.TenantID),
				zap.Error(err))
		case !set:
			g.log.Info("tenant lock taken by concurrent navigation",
				zap.String("session_id", sess.ID()),
				zap.String("wanted", d.TenantID),
				zap.String("locked", stored))
			d = g.Evaluate(true, stored, path)
		default:
			_ = audit.LogEvent(ctx, "tenant.lock", map[string]any{
				"session_id": sess.ID(),
				"tenant_id":  d.TenantID,
				"path":       path,
			})
		}
	}
	if d.Kind == Redirect {
		nav.Replace(d.Location)
		_ = audit.LogEvent(ctx, "tenant.redirect", map[string]any{
			"session_id": sess.ID(),
			"tenant_id":  d.TenantID,
			"from":       path,
			"to":         d.Location,
		})
	}
	obs.ObserveGuardDecision(string(d.Kind))
	return d
}
