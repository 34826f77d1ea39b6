package access

import "context"

// Source fetches a fresh snapshot from the system of record.
type Source interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context) (Snapshot, error) { return f(ctx) }

// Static serves a fixed snapshot.
type Static Snapshot

func (s Static) Snapshot(context.Context) (Snapshot, error) { return Snapshot(s), nil }
