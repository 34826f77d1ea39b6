// Package refresh re-resolves access views on a timer.
package refresh

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
)

// DefaultInterval matches the live status refresh of the portal.
const DefaultInterval = 5 * time.Second

// Poller fetches a fresh snapshot every Interval and hands the resolved view
// of UserID to OnView. No state is carried between ticks.
type Poller struct {
	Source   access.Source
	Interval time.Duration
	UserID   string
	// Tenant limits group derived access to global groups and this tenant.
	Tenant  string
	OnView  func(access.AccessView)
	OnError func(error)
	// Name labels fetch error metrics.
	Name string
}

// Run polls until ctx is done and returns ctx.Err(). The first fetch
// happens immediately. Fetch errors are reported and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	if p.Source == nil {
		return errors.New("refresh: source is required")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.tick(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
}

// Once runs a single fetch and resolve.
func (p *Poller) Once(ctx context.Context) (access.AccessView, error) {
	snap, err := p.Source.Snapshot(ctx)
	if err != nil {
		return access.AccessView{}, err
	}
	obs.IncAccessResolutions()
	return access.Resolve(p.UserID, snap.ForTenant(p.Tenant)), nil
}

func (p *Poller) tick(ctx context.Context) {
	view, err := p.Once(ctx)
	if err != nil {
		// A fetch cancelled by shutdown is not a failure.
		if ctx.Err() != nil {
			return
		}
		name := p.Name
		if name == "" {
			name = "poller"
		}
		obs.IncSnapshotFetchErrors(name)
		if p.OnError != nil {
			p.OnError(err)
		} else {
			obs.Logger().Warn("snapshot refresh failed", zap.String("user_id", p.UserID), zap.Error(err))
		}
		return
	}
	if p.OnView != nil {
		p.OnView(view)
	}
}
