package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by *pgxpool.Pool and pgx.Tx.
// Stores run against a Querier so the same code serves both pooled
// operation and a single scoped transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ScopedStore is a MessageStore bound to one transaction. Close rolls
// the transaction back on every exit path unless Commit ran first, so
// a deferred Close guarantees tests and abandoned speculative writes
// leave no residue.
type ScopedStore struct {
	*MessageStore
	tx        pgx.Tx
	committed bool
}

// Scoped begins a transaction and returns a store bound to it. Defer
// Close on every path; call Commit only to keep the writes.
func (s *MessageStore) Scoped(ctx context.Context) (*ScopedStore, error) {
	if s.pool == nil {
		return nil, errors.New("scoped store cannot be nested")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin scoped transaction: %w", err)
	}
	return &ScopedStore{
		MessageStore: &MessageStore{q: tx},
		tx:           tx,
	}, nil
}

// Commit makes the scope's writes permanent.
func (s *ScopedStore) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scoped transaction: %w", err)
	}
	s.committed = true
	return nil
}

// Close rolls back the scope if it was not committed. Safe to defer
// unconditionally.
func (s *ScopedStore) Close(ctx context.Context) {
	if s.committed {
		return
	}
	_ = s.tx.Rollback(ctx)
}
