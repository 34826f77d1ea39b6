package refresh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
)

func snapshotWithRole(roleID string) access.Snapshot {
	return access.Snapshot{
		Groups:     []access.Group{{GroupID: "g1"}},
		UserGroups: []access.UserGroup{{UserID: "u1", GroupID: "g1"}},
		GroupRoles: []access.GroupRole{{GroupID: "g1", RoleID: roleID}},
	}
}

func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func TestPollerReResolvesEachTick(t *testing.T) {
	var calls atomic.Int32
	src := access.SourceFunc(func(context.Context) (access.Snapshot, error) {
		n := calls.Add(1)
		if n == 1 {
			return snapshotWithRole("r1"), nil
		}
		return snapshotWithRole("r2"), nil
	})

	views := make(chan access.AccessView, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &Poller{Source: src, Interval: 10 * time.Millisecond, UserID: "u1", OnView: func(v access.AccessView) { offer(views, v) }}

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	first := <-views
	assert.Equal(t, []string{"r1"}, first.EffectiveRoleIDs)
	second := <-views
	assert.Equal(t, []string{"r2"}, second.EffectiveRoleIDs)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerReportsErrorsAndContinues(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("backend unavailable")
	src := access.SourceFunc(func(context.Context) (access.Snapshot, error) {
		if calls.Add(1) == 1 {
			return access.Snapshot{}, boom
		}
		return snapshotWithRole("r1"), nil
	})

	errs := make(chan error, 8)
	views := make(chan access.AccessView, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &Poller{
		Source:   src,
		Interval: 10 * time.Millisecond,
		UserID:   "u1",
		OnView:   func(v access.AccessView) { offer(views, v) },
		OnError:  func(err error) { offer(errs, err) },
	}
	go func() { _ = p.Run(ctx) }()

	assert.ErrorIs(t, <-errs, boom)
	v := <-views
	assert.Equal(t, []string{"r1"}, v.EffectiveRoleIDs)
}

func TestPollerOnceScopesTenant(t *testing.T) {
	snap := access.Snapshot{
		Groups:     []access.Group{{GroupID: "acme", TenantID: "acme"}, {GroupID: "globex", TenantID: "globex"}},
		UserGroups: []access.UserGroup{{UserID: "u1", GroupID: "acme"}, {UserID: "u1", GroupID: "globex"}},
	}
	p := &Poller{Source: access.Static(snap), UserID: "u1", Tenant: "acme"}
	view, err := p.Once(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"acme"}, view.MemberGroupIDs)
}

func TestPollerRequiresSource(t *testing.T) {
	assert.Error(t, (&Poller{}).Run(context.Background()))
}
