package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/store"
)

func newService(t *testing.T, balance string) (*Service, *store.MemoryStore, uuid.UUID) {
	t.Helper()
	m := store.NewMemoryStore()
	userID := uuid.New()
	require.NoError(t, m.CreateUser(context.Background(), &store.User{ID: userID, Balance: decimal.Zero}))
	svc := NewService(m)
	if balance != "0" {
		_, err := svc.Add(context.Background(), userID, decimal.RequireFromString(balance), store.EntryPurchase, nil)
		require.NoError(t, err)
	}
	return svc, m, userID
}

func TestDeductAndBalance(t *testing.T) {
	svc, m, userID := newService(t, "10.00")
	ctx := context.Background()

	jobID := uuid.New()
	entry, err := svc.Deduct(ctx, userID, decimal.RequireFromString("2.00"), store.EntryTranscription, &jobID, nil)
	require.NoError(t, err)

	assert.True(t, entry.Amount.Equal(decimal.RequireFromString("-2.00")))
	assert.True(t, entry.BalanceAfter.Equal(decimal.RequireFromString("8.00")))
	require.NotNil(t, entry.JobID)
	assert.Equal(t, jobID, *entry.JobID)

	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("8.00")))
	assert.True(t, balance.Equal(m.Sum(userID)))
}

func TestDeductRejectsNonPositiveAmounts(t *testing.T) {
	svc, _, userID := newService(t, "10.00")
	ctx := context.Background()

	for _, amount := range []string{"0", "-1.00"} {
		_, err := svc.Deduct(ctx, userID, decimal.RequireFromString(amount), store.EntryTranscription, nil, nil)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	}
}

func TestDeductInsufficient(t *testing.T) {
	svc, _, userID := newService(t, "1.00")
	ctx := context.Background()

	_, err := svc.Deduct(ctx, userID, decimal.RequireFromString("1.50"), store.EntryTranscription, nil, nil)
	require.Error(t, err)
	assert.True(t, store.IsInsufficientCredits(err))

	entries, err := svc.History(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, entries, 1) // just the purchase
}

func TestCheckSufficient(t *testing.T) {
	svc, _, userID := newService(t, "5.00")
	ctx := context.Background()

	ok, err := svc.CheckSufficient(ctx, userID, decimal.RequireFromString("5.00"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CheckSufficient(ctx, userID, decimal.RequireFromString("5.01"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefundReversesDeduction(t *testing.T) {
	svc, m, userID := newService(t, "10.00")
	ctx := context.Background()

	jobID := uuid.New()
	deduction, err := svc.Deduct(ctx, userID, decimal.RequireFromString("3.00"), store.EntryTranscription, &jobID, nil)
	require.NoError(t, err)

	refund, err := svc.Refund(ctx, deduction.ID, "processing timeout")
	require.NoError(t, err)

	assert.Equal(t, store.EntryRefund, refund.Kind)
	assert.True(t, refund.Amount.Equal(decimal.RequireFromString("3.00")))
	assert.Equal(t, deduction.ID.String(), refund.Metadata["refunded_entry_id"])
	assert.Equal(t, "processing timeout", refund.Metadata["reason"])
	require.NotNil(t, refund.JobID)
	assert.Equal(t, jobID, *refund.JobID)

	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, balance.Equal(m.Sum(userID)))

	// The original entry is untouched
	entries, err := svc.EntriesForJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(decimal.RequireFromString("-3.00")))
}

func TestRefundRejectsNonDeductions(t *testing.T) {
	svc, _, userID := newService(t, "10.00")
	ctx := context.Background()

	purchase, err := svc.Add(ctx, userID, decimal.RequireFromString("5.00"), store.EntryPurchase, nil)
	require.NoError(t, err)

	_, err = svc.Refund(ctx, purchase.ID, "oops")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestRefundOfRefundRejected(t *testing.T) {
	svc, _, userID := newService(t, "10.00")
	ctx := context.Background()

	deduction, err := svc.Deduct(ctx, userID, decimal.RequireFromString("2.00"), store.EntryTranscription, nil, nil)
	require.NoError(t, err)

	refund, err := svc.Refund(ctx, deduction.ID, "timeout")
	require.NoError(t, err)

	// A refund credits the account, so it is not itself refundable
	_, err = svc.Refund(ctx, refund.ID, "double dip")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestRefundUnknownEntry(t *testing.T) {
	svc, _, _ := newService(t, "0")
	_, err := svc.Refund(context.Background(), uuid.New(), "missing")
	assert.ErrorIs(t, err, store.ErrEntryNotFound)
}

func TestHistoryOrder(t *testing.T) {
	svc, _, userID := newService(t, "10.00")
	ctx := context.Background()

	_, err := svc.Deduct(ctx, userID, decimal.RequireFromString("1.00"), store.EntryTranscription, nil, nil)
	require.NoError(t, err)
	_, err = svc.Add(ctx, userID, decimal.RequireFromString("4.00"), store.EntryBonus, nil)
	require.NoError(t, err)

	entries, err := svc.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// Application order, each BalanceAfter consistent with the running sum
	running := decimal.Zero
	for _, e := range entries {
		running = running.Add(e.Amount)
		assert.True(t, e.BalanceAfter.Equal(running),
			"entry %s: BalanceAfter %s != running %s", e.ID, e.BalanceAfter, running)
	}
}
