package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore implements Store on top of a pgx pool. Ledger writes lock the
// user row (SELECT ... FOR UPDATE) so concurrent jobs for the same user
// cannot lose balance updates; different users never contend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *Job) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}
	md, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (id, user_id, blob_ref, config, status, progress, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.UserID, job.BlobRef, cfg, job.Status, job.Progress, job.CreatedAt, md,
	)
	return err
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, blob_ref, config, status, progress,
		       created_at, started_at, completed_at, result, error, metadata
		FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, blob_ref, config, status, progress,
		       created_at, started_at, completed_at, result, error, metadata
		FROM jobs WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *Job) error {
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("marshal job config: %w", err)
	}
	var result, jobErr []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return fmt.Errorf("marshal job result: %w", err)
		}
	}
	if job.Error != nil {
		if jobErr, err = json.Marshal(job.Error); err != nil {
			return fmt.Errorf("marshal job error: %w", err)
		}
	}
	md, err := json.Marshal(job.Metadata)
	if err != nil {
		return fmt.Errorf("marshal job metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET config = $2, status = $3, progress = $4, started_at = $5,
		    completed_at = $6, result = $7, error = $8, metadata = $9
		WHERE id = $1`,
		job.ID, cfg, job.Status, job.Progress, job.StartedAt,
		job.CompletedAt, result, jobErr, md,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	var balance string
	err := s.pool.QueryRow(ctx, `
		SELECT id, balance::text, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &balance, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *User) error {
	now := user.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Balance.String(), now,
	)
	return err
}

func (s *PostgresStore) Apply(ctx context.Context, entry *LedgerEntry) (*LedgerEntry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var balanceStr string
	err = tx.QueryRow(ctx,
		`SELECT balance::text FROM users WHERE id = $1 FOR UPDATE`, entry.UserID,
	).Scan(&balanceStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}

	newBalance := balance.Add(entry.Amount)
	if newBalance.IsNegative() {
		return nil, &InsufficientCreditsError{
			Required:  entry.Amount.Abs(),
			Available: balance,
		}
	}

	out := *entry
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	out.BalanceAfter = newBalance

	md, err := json.Marshal(out.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal entry metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, amount, kind, job_id, metadata, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		out.ID, out.UserID, out.Amount.String(), out.Kind, out.JobID, md, out.BalanceAfter.String(), out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE users SET balance = $2, updated_at = $3 WHERE id = $1`,
		out.UserID, newBalance.String(), out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, id uuid.UUID) (*LedgerEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, amount::text, kind, job_id, metadata, balance_after::text, created_at
		FROM ledger_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	return entry, err
}

func (s *PostgresStore) ListEntriesByUser(ctx context.Context, userID uuid.UUID) ([]*LedgerEntry, error) {
	return s.listEntries(ctx, `
		SELECT id, user_id, amount::text, kind, job_id, metadata, balance_after::text, created_at
		FROM ledger_entries WHERE user_id = $1 ORDER BY created_at ASC`, userID)
}

func (s *PostgresStore) ListEntriesByJob(ctx context.Context, jobID uuid.UUID) ([]*LedgerEntry, error) {
	return s.listEntries(ctx, `
		SELECT id, user_id, amount::text, kind, job_id, metadata, balance_after::text, created_at
		FROM ledger_entries WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
}

func (s *PostgresStore) listEntries(ctx context.Context, query string, arg any) ([]*LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job
	var cfg, result, jobErr, md []byte
	err := row.Scan(&job.ID, &job.UserID, &job.BlobRef, &cfg, &job.Status, &job.Progress,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &result, &jobErr, &md)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cfg, &job.Config); err != nil {
		return nil, fmt.Errorf("unmarshal job config: %w", err)
	}
	if len(result) > 0 {
		job.Result = &JobResult{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	if len(jobErr) > 0 {
		job.Error = &JobError{}
		if err := json.Unmarshal(jobErr, job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal job error: %w", err)
		}
	}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &job.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal job metadata: %w", err)
		}
	}
	return &job, nil
}

func scanEntry(row pgx.Row) (*LedgerEntry, error) {
	var entry LedgerEntry
	var amount, balanceAfter string
	var md []byte
	err := row.Scan(&entry.ID, &entry.UserID, &amount, &entry.Kind, &entry.JobID,
		&md, &balanceAfter, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if entry.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	if entry.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
		return nil, fmt.Errorf("parse balance_after: %w", err)
	}
	if len(md) > 0 {
		if err := json.Unmarshal(md, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal entry metadata: %w", err)
		}
	}
	return &entry, nil
}
