// Package memory is an in-process wallet store with the same locking
// contract as the PostgreSQL adapter: a wallet row is held exclusively by
// one transaction from GetByIDForUpdate until Commit or Rollback.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrForeignTx is returned when a transaction not created by this store is passed in.
var ErrForeignTx = errors.New("memory: transaction does not belong to this store")

// Store implements ports.WalletRepository and ports.DBTransactor.
type Store struct {
	mu      sync.RWMutex
	wallets map[uuid.UUID]domain.Wallet
	locks   map[uuid.UUID]chan struct{}

	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout bounds each row lock wait;
// zero means wait until the context is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		locks:       make(map[uuid.UUID]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{
		store:  s,
		held:   make(map[uuid.UUID]chan struct{}),
		writes: make(map[uuid.UUID]write),
	}, nil
}

// Create inserts a new wallet.
func (s *Store) Create(_ context.Context, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.wallets[w.ID]; exists {
		return fmt.Errorf("insert wallet: duplicate id %s", w.ID)
	}
	s.wallets[w.ID] = *w
	s.locks[w.ID] = make(chan struct{}, 1)
	return nil
}

// GetByID returns the last committed state of a wallet.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetByIDForUpdate locks the wallet for tx and returns its committed state.
func (s *Store) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mtx, err := s.own(tx)
	if err != nil {
		return nil, err
	}

	if _, held := mtx.held[id]; !held {
		ok, err := mtx.acquire(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get wallet for update by id: %w", err)
		}
		if !ok {
			return nil, nil
		}
	}

	if wr, staged := mtx.writes[id]; staged {
		if wr.deleted {
			return nil, nil
		}
		w, _ := s.GetByID(ctx, id)
		if w == nil {
			return nil, nil
		}
		w.Balance = wr.balance
		return w, nil
	}

	w, _ := s.GetByID(ctx, id)
	if w == nil {
		// Deleted while we waited for the lock.
		mtx.release(id)
		return nil, nil
	}
	return w, nil
}

// UpdateBalance stages a new balance; it becomes visible on Commit.
func (s *Store) UpdateBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	mtx, err := s.own(tx)
	if err != nil {
		return err
	}
	if _, held := mtx.held[id]; !held {
		return fmt.Errorf("update wallet balance: row %s is not locked by this transaction", id)
	}
	if wr := mtx.writes[id]; wr.deleted {
		return fmt.Errorf("wallet not found: %s", id)
	}
	if balance.GreaterThanOrEqual(domain.MaxBalance) {
		return fmt.Errorf("update wallet balance: %w: %s", domain.ErrBalanceOverflow, balance)
	}
	mtx.writes[id] = write{balance: balance}
	return nil
}

// Delete stages removal of a locked wallet. An unlocked wallet is locked first.
func (s *Store) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error) {
	w, err := s.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if w == nil {
		return false, nil
	}
	mtx, _ := s.own(tx)
	mtx.writes[id] = write{deleted: true}
	return true, nil
}

// Len returns the number of committed wallets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wallets)
}

func (s *Store) own(tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx.store != s {
		return nil, ErrForeignTx
	}
	if mtx.closed {
		return nil, pgx.ErrTxClosed
	}
	return mtx, nil
}

func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locks[id]
}

func (s *Store) apply(writes map[uuid.UUID]write) {
	if len(writes) == 0 {
		return
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, wr := range writes {
		if wr.deleted {
			delete(s.wallets, id)
			delete(s.locks, id)
			continue
		}
		w, ok := s.wallets[id]
		if !ok {
			continue
		}
		w.Balance = wr.balance
		w.UpdatedAt = now
		s.wallets[id] = w
	}
}

var _ ports.WalletRepository = (*Store)(nil)
var _ ports.DBTransactor = (*Store)(nil)
