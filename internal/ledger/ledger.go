package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/store"
)

// Service exposes credit operations over the append-only ledger. Every
// mutation goes through store.Apply, which adjusts the cached balance and
// appends the entry in one atomic unit.
type Service struct {
	store store.LedgerStore
}

// NewService creates a ledger service over the given store.
func NewService(s store.LedgerStore) *Service {
	return &Service{store: s}
}

// GetBalance reads the cached balance for a user.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return u.Balance, nil
}

// CheckSufficient reports whether the user currently holds at least amount.
// The balance can change between this check and a later Deduct; callers must
// still handle InsufficientCreditsError at deduction time.
func (s *Service) CheckSufficient(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	balance, err := s.GetBalance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThanOrEqual(amount), nil
}

// Deduct removes amount credits from the user. It fails with
// store.InsufficientCreditsError and no side effect when the balance is too
// low. amount must be positive.
func (s *Service) Deduct(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind store.EntryKind, jobID *uuid.UUID, metadata map[string]string) (*store.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("deduct amount must be positive, got %s", amount),
			"LEDGER_INVALID_AMOUNT",
			"Pass the absolute cost to Deduct.",
		)
	}
	entry, err := s.store.Apply(ctx, &store.LedgerEntry{
		UserID:   userID,
		Amount:   amount.Neg(),
		Kind:     kind,
		JobID:    jobID,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("credits deducted",
		"user_id", userID, "amount", amount.String(), "kind", kind,
		"balance_after", entry.BalanceAfter.String())
	return entry, nil
}

// Add credits the user. amount must be positive.
func (s *Service) Add(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, kind store.EntryKind, metadata map[string]string) (*store.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("add amount must be positive, got %s", amount),
			"LEDGER_INVALID_AMOUNT",
			"Pass the absolute credit amount to Add.",
		)
	}
	entry, err := s.store.Apply(ctx, &store.LedgerEntry{
		UserID:   userID,
		Amount:   amount,
		Kind:     kind,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("credits added",
		"user_id", userID, "amount", amount.String(), "kind", kind,
		"balance_after", entry.BalanceAfter.String())
	return entry, nil
}

// Refund reverses a prior deduction by appending a refund entry crediting
// back the exact absolute value of the original. Only entries with a negative
// amount can be refunded; the original entry is never mutated.
func (s *Service) Refund(ctx context.Context, originalEntryID uuid.UUID, reason string) (*store.LedgerEntry, error) {
	original, err := s.store.GetEntry(ctx, originalEntryID)
	if err != nil {
		return nil, err
	}
	if original.Amount.Sign() >= 0 {
		return nil, errors.NewValidationError(
			fmt.Sprintf("entry %s is not a deduction and cannot be refunded", originalEntryID),
			"LEDGER_REFUND_NOT_DEDUCTION",
			"Only deduction entries (negative amount) can be refunded.",
		)
	}

	entry, err := s.store.Apply(ctx, &store.LedgerEntry{
		UserID: original.UserID,
		Amount: original.Amount.Abs(),
		Kind:   store.EntryRefund,
		JobID:  original.JobID,
		Metadata: map[string]string{
			"refunded_entry_id": originalEntryID.String(),
			"reason":            reason,
		},
	})
	if err != nil {
		return nil, err
	}
	slog.Info("deduction refunded",
		"user_id", original.UserID, "original_entry_id", originalEntryID,
		"amount", entry.Amount.String(), "reason", reason)
	return entry, nil
}

// History returns all entries for a user in application order.
func (s *Service) History(ctx context.Context, userID uuid.UUID) ([]*store.LedgerEntry, error) {
	return s.store.ListEntriesByUser(ctx, userID)
}

// EntriesForJob returns all entries tied to a job in application order.
func (s *Service) EntriesForJob(ctx context.Context, jobID uuid.UUID) ([]*store.LedgerEntry, error) {
	return s.store.ListEntriesByJob(ctx, jobID)
}
