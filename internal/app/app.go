// Package app wires configuration into the snapshot source and lock store
// shared by the portal binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/backend"
	"github.com/milpatel11/sk-ui-sub001/internal/config"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
	"github.com/milpatel11/sk-ui-sub001/internal/session"
	"github.com/milpatel11/sk-ui-sub001/internal/store/pg"
)

// Source is a snapshot source that can be health checked.
type Source interface {
	access.Source
	Ping(ctx context.Context) error
}

// LockStore is a session lock store that can be health checked.
type LockStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	SetIfAbsent(ctx context.Context, key, value string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// Deps holds the opened dependencies. Close releases all of them.
type Deps struct {
	Source Source
	Locks  LockStore
	// DB is set when snapshots come from postgres.
	DB *sql.DB

	closers []func() error
}

// Open builds the source and lock store named by cfg.
func Open(ctx context.Context, cfg config.Config) (*Deps, error) {
	d := &Deps{}
	src, err := d.openSource(cfg)
	if err != nil {
		return nil, err
	}
	d.Source = src

	locks, err := d.openLocks(ctx, cfg)
	if err != nil {
		_ = d.Close()
		return nil, err
	}
	d.Locks = locks
	return d, nil
}

// OpenSource builds only the snapshot source.
func OpenSource(cfg config.Config) (*Deps, error) {
	d := &Deps{}
	src, err := d.openSource(cfg)
	if err != nil {
		return nil, err
	}
	d.Source = src
	return d, nil
}

func (d *Deps) openSource(cfg config.Config) (Source, error) {
	switch cfg.Source {
	case config.SourceBackend:
		c, err := backend.New(cfg.BackendURL, backend.WithToken(cfg.BackendToken))
		if err != nil {
			return nil, fmt.Errorf("backend source: %w", err)
		}
		return c, nil
	case config.SourcePostgres:
		st, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres source: %w", err)
		}
		d.DB = st.DB()
		d.closers = append(d.closers, st.Close)
		return st, nil
	default:
		return nil, fmt.Errorf("%w: unknown snapshot source %q", config.ErrInvalid, cfg.Source)
	}
}

func (d *Deps) openLocks(ctx context.Context, cfg config.Config) (LockStore, error) {
	if !cfg.Redis.Enabled() {
		obs.Logger().Info("session locks in memory")
		return session.NewMemoryStore(cfg.SessionTTL), nil
	}
	client, err := session.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, client.Close)
	obs.Logger().Info("session locks in redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(client, cfg.Redis.Prefix, cfg.SessionTTL), nil
}

// Close releases every opened dependency.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
