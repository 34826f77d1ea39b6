package tenancy

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/obs"
	"github.com/milpatel11/sk-ui-sub001/internal/session"
)

// LockStore holds the locked tenant of a session under a single key.
type LockStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetIfAbsent stores value only when key holds nothing. It returns the
	// value held after the call and whether this call stored it.
	SetIfAbsent(ctx context.Context, key, value string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// ErrNoSession is returned when a session is built without an id.
var ErrNoSession = errors.New("session id is required")

// Session is the tenant lock of one login session.
type Session struct {
	id    string
	key   string
	ended string
	store LockStore
	log   *zap.Logger
}

// NewSession binds the session id to store.
func NewSession(id string, store LockStore) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNoSession
	}
	if store == nil {
		return nil, errors.New("lock store is required")
	}
	return &Session{
		id:    id,
		key:   session.LockKey(id),
		ended: session.EndedKey(id),
		store: store,
		log:   obs.Logger().With(zap.String("session_id", id)),
	}, nil
}

func (s *Session) ID() string { return s.id }

// Init starts the session without a lock. Call it on login.
func (s *Session) Init(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.ended); err != nil {
		return err
	}
	return s.store.Delete(ctx, s.key)
}

// Clear drops the lock.
func (s *Session) Clear(ctx context.Context) error {
	return s.store.Delete(ctx, s.key)
}

// End marks the session logged out and drops its lock. Call it on logout.
func (s *Session) End(ctx context.Context) error {
	if err := s.store.Set(ctx, s.ended, "1"); err != nil {
		return err
	}
	return s.Clear(ctx)
}

// Ended reports whether End was called for this session.
func (s *Session) Ended(ctx context.Context) (bool, error) {
	_, ok, err := s.store.Get(ctx, s.ended)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Locked returns the locked tenant or "" when none is set. A failed read
// is logged and reported as unlocked.
func (s *Session) Locked(ctx context.Context) string {
	v, ok, err := s.store.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("tenant lock read failed", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Lock pins the session to tenantID unless it is already locked. It returns
// the tenant the session is locked to afterwards and whether this call set
// it; of concurrent calls only one sets the lock.
func (s *Session) Lock(ctx context.Context, tenantID string) (string, bool, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", false, errors.New("tenant id is required")
	}
	stored, set, err := s.store.SetIfAbsent(ctx, s.key, tenantID)
	if err != nil {
		return "", false, err
	}
	return strings.TrimSpace(stored), set, nil
}
