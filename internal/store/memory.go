package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory Store used by tests and local development.
// Balance updates are serialized per user, not globally.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[uuid.UUID]*Job
	users   map[uuid.UUID]*User
	entries map[uuid.UUID]*LedgerEntry
	byUser  map[uuid.UUID][]uuid.UUID

	userMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[uuid.UUID]*Job),
		users:   make(map[uuid.UUID]*User),
		entries: make(map[uuid.UUID]*LedgerEntry),
		byUser:  make(map[uuid.UUID][]uuid.UUID),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *MemoryStore) userLock(id uuid.UUID) *sync.Mutex {
	m.userMu.Lock()
	defer m.userMu.Unlock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l
}

func (m *MemoryStore) CreateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *MemoryStore) ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Job
	for _, job := range m.jobs {
		if job.UserID == userID {
			cp := *job
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateJob(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.users[user.ID] = &cp
	return nil
}

func (m *MemoryStore) Apply(ctx context.Context, entry *LedgerEntry) (*LedgerEntry, error) {
	lock := m.userLock(entry.UserID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[entry.UserID]
	if !ok {
		return nil, ErrUserNotFound
	}

	newBalance := u.Balance.Add(entry.Amount)
	if newBalance.IsNegative() {
		return nil, &InsufficientCreditsError{
			Required:  entry.Amount.Abs(),
			Available: u.Balance,
		}
	}

	cp := *entry
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	cp.BalanceAfter = newBalance

	u.Balance = newBalance
	u.UpdatedAt = cp.CreatedAt
	m.entries[cp.ID] = &cp
	m.byUser[entry.UserID] = append(m.byUser[entry.UserID], cp.ID)

	out := cp
	return &out, nil
}

func (m *MemoryStore) GetEntry(ctx context.Context, id uuid.UUID) (*LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byUser[userID]
	out := make([]*LedgerEntry, 0, len(ids))
	for _, id := range ids {
		cp := *m.entries[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) ListEntriesByJob(ctx context.Context, jobID uuid.UUID) ([]*LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*LedgerEntry
	for _, e := range m.entries {
		if e.JobID != nil && *e.JobID == jobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Sum recomputes the balance for a user from entries. Test helper for the
// balance == sum(entries.amount) invariant.
func (m *MemoryStore) Sum(userID uuid.UUID) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := decimal.Zero
	for _, id := range m.byUser[userID] {
		total = total.Add(m.entries[id].Amount)
	}
	return total
}
