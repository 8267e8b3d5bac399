package verification

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaultd-io/vaultd/internal/shared"
)

// Repository defines persistence operations for verification entries.
type Repository interface {
	Upsert(ctx context.Context, email, code string) error
	Consume(ctx context.Context, email, code string) (bool, error)
	Find(ctx context.Context, email string) (*Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
}

// PGRepository implements Repository using PostgreSQL. The unique constraint
// on email keeps at most one live entry per address, and consumption is a
// conditional update so two concurrent validations cannot both succeed.
type PGRepository struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool, queryTimeout time.Duration) *PGRepository {
	return &PGRepository{pool: pool, queryTimeout: queryTimeout}
}

func (r *PGRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.queryTimeout)
}

// Upsert installs a fresh code for the email. Any previously issued code,
// consumed or not, is overwritten and the used flag reset.
func (r *PGRepository) Upsert(ctx context.Context, email, code string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_codes (email, code, is_used, created_at)
		VALUES ($1, $2, false, now())
		ON CONFLICT (email) DO UPDATE
		SET code = EXCLUDED.code, is_used = false, created_at = now()
	`, email, code)
	return err
}

// Consume marks the entry used when the code matches and it is still pending.
// The affected-row count is the whole contract: zero means nothing changed.
func (r *PGRepository) Consume(ctx context.Context, email, code string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE verification_codes SET is_used = true
		WHERE email = $1 AND code = $2 AND is_used = false
	`, email, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Find fetches the entry for an email.
func (r *PGRepository) Find(ctx context.Context, email string) (*Entry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT email, code, is_used, created_at FROM verification_codes WHERE email = $1
	`, email)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrCodeNotFound
		}
		return nil, err
	}
	return entry, nil
}

// ListAll returns a full snapshot of every verification entry.
func (r *PGRepository) ListAll(ctx context.Context) ([]Entry, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT email, code, is_used, created_at FROM verification_codes ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	var createdAt pgtype.Timestamptz
	if err := row.Scan(&e.Email, &e.Code, &e.IsUsed, &createdAt); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		e.CreatedAt = createdAt.Time
	}
	return &e, nil
}

var _ Repository = (*PGRepository)(nil)
