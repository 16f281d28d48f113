package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrEntryNotFound is returned when a ledger entry id does not exist.
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// InsufficientCreditsError is returned by Apply when a debit would drive the
// balance negative. Nothing is written when it is returned.
type InsufficientCreditsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: required %s, available %s", e.Required, e.Available)
}

// IsInsufficientCredits reports whether err is an InsufficientCreditsError.
func IsInsufficientCredits(err error) bool {
	var ice *InsufficientCreditsError
	return errors.As(err, &ice)
}

// JobStore persists jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*Job, error)
	ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
}

// LedgerStore persists users and ledger entries. Apply is the single write
// primitive: it atomically adjusts the cached balance and appends the entry,
// guarded per user so unrelated users never contend.
type LedgerStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	CreateUser(ctx context.Context, user *User) error

	// Apply atomically adds entry.Amount to the user's balance and appends
	// the entry with BalanceAfter set to the new balance. A negative amount
	// that exceeds the balance fails with InsufficientCreditsError and
	// leaves no trace.
	Apply(ctx context.Context, entry *LedgerEntry) (*LedgerEntry, error)

	GetEntry(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error)
	ListEntriesByJob(ctx context.Context, jobID uuid.UUID) ([]*LedgerEntry, error)
}

// Store combines both persistence surfaces.
type Store interface {
	JobStore
	LedgerStore
}
