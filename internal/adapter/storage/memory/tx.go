package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type write struct {
	balance decimal.Decimal
	deleted bool
}

// Tx is a Store transaction. Only Commit and Rollback are supported from
// the pgx.Tx interface; the store methods do the rest.
type Tx struct {
	pgx.Tx

	store  *Store
	held   map[uuid.UUID]chan struct{}
	writes map[uuid.UUID]write
	closed bool
}

// Commit publishes staged writes and releases every held lock.
func (t *Tx) Commit(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.store.apply(t.writes)
	t.finish()
	return nil
}

// Rollback discards staged writes and releases every held lock.
func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.closed = true
	t.writes = nil
	for id := range t.held {
		t.release(id)
	}
}

// acquire waits for the row lock of id. It reports false when the wallet
// does not exist.
func (t *Tx) acquire(ctx context.Context, id uuid.UUID) (bool, error) {
	ch := t.store.lockFor(id)
	if ch == nil {
		return false, nil
	}

	if t.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.store.lockTimeout)
		defer cancel()
	}

	start := time.Now()
	select {
	case ch <- struct{}{}:
		t.held[id] = ch
		return true, nil
	case <-ctx.Done():
		return false, fmt.Errorf("%w after %s: %w", ports.ErrLockTimeout, time.Since(start).Round(time.Millisecond), ctx.Err())
	}
}

func (t *Tx) release(id uuid.UUID) {
	ch, ok := t.held[id]
	if !ok {
		return
	}
	delete(t.held, id)
	<-ch
}
