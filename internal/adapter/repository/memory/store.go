// Package memory is a process-local storage backend. Writes are buffered in a
// transaction and applied atomically on commit; GetByIDForUpdate holds a
// per-context row lock until the transaction ends.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/iho/splitledger/internal/domain"
	"github.com/iho/splitledger/internal/usecase"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("memory: transaction already committed or rolled back")

// Store holds all contexts and entries.
type Store struct {
	mu       sync.RWMutex
	contexts map[string]*domain.LedgerContext
	friends  map[string]string // friend key -> context ID
	entries  map[string][]*domain.Entry
	byID     map[string]*domain.Entry

	rowMu sync.Mutex
	rows  map[string]*sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		contexts: make(map[string]*domain.LedgerContext),
		friends:  make(map[string]string),
		entries:  make(map[string][]*domain.Entry),
		byID:     make(map[string]*domain.Entry),
		rows:     make(map[string]*sync.Mutex),
	}
}

func (s *Store) rowLock(id string) *sync.Mutex {
	s.rowMu.Lock()
	defer s.rowMu.Unlock()

	m, ok := s.rows[id]
	if !ok {
		m = &sync.Mutex{}
		s.rows[id] = m
	}
	return m
}

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// NewTxManager creates a new TxManager.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// Begin starts a transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	return &Tx{store: m.store, locked: make(map[string]*sync.Mutex), versions: make(map[string]int64)}, nil
}

// Tx buffers writes until Commit.
type Tx struct {
	store    *Store
	ops      []func(s *Store) error
	locked   map[string]*sync.Mutex
	versions map[string]int64
	done     bool
}

// Commit applies buffered writes atomically and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	defer t.finish()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.clone()
	for _, op := range t.ops {
		if err := op(s); err != nil {
			s.restore(snap)
			return err
		}
	}
	return nil
}

// Rollback drops buffered writes and releases row locks.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

func (t *Tx) finish() {
	t.done = true
	t.ops = nil
	for id, m := range t.locked {
		m.Unlock()
		delete(t.locked, id)
	}
}

func (t *Tx) lock(id string) {
	if _, ok := t.locked[id]; ok {
		return
	}
	m := t.store.rowLock(id)
	m.Lock()
	t.locked[id] = m
}

func asTx(tx usecase.Transaction) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errors.New("memory: foreign transaction")
	}
	if t.done {
		return nil, ErrTxDone
	}
	return t, nil
}

type snapshot struct {
	contexts map[string]*domain.LedgerContext
	friends  map[string]string
	entries  map[string][]*domain.Entry
	byID     map[string]*domain.Entry
}

// clone copies the maps; stored values are never mutated in place.
func (s *Store) clone() snapshot {
	snap := snapshot{
		contexts: make(map[string]*domain.LedgerContext, len(s.contexts)),
		friends:  make(map[string]string, len(s.friends)),
		entries:  make(map[string][]*domain.Entry, len(s.entries)),
		byID:     make(map[string]*domain.Entry, len(s.byID)),
	}
	for k, v := range s.contexts {
		snap.contexts[k] = v
	}
	for k, v := range s.friends {
		snap.friends[k] = v
	}
	for k, v := range s.entries {
		snap.entries[k] = v
	}
	for k, v := range s.byID {
		snap.byID[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.contexts = snap.contexts
	s.friends = snap.friends
	s.entries = snap.entries
	s.byID = snap.byID
}

func copyContext(c *domain.LedgerContext) *domain.LedgerContext {
	out := *c
	out.Members = append([]domain.Member(nil), c.Members...)
	return &out
}

func copyEntry(e *domain.Entry) *domain.Entry {
	out := *e
	out.Participants = append([]domain.Participant(nil), e.Participants...)
	out.Adjustments = append([]domain.AdjustmentLine(nil), e.Adjustments...)
	return &out
}
