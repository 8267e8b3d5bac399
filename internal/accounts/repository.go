package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vaultd-io/vaultd/internal/shared"
)

// Repository defines persistence operations for user accounts.
type Repository interface {
	Insert(ctx context.Context, email, passwordHash string) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	MarkLoggedIn(ctx context.Context, email string) error
	MarkLoggedOut(ctx context.Context, email string) (bool, error)
	AddToBalance(ctx context.Context, email string, delta decimal.Decimal) (decimal.Decimal, error)
	ListAll(ctx context.Context) ([]User, error)
}

const uniqueViolation = "23505"

// PGRepository implements Repository using PostgreSQL. Uniqueness and
// conditional updates are enforced by the database so concurrent service
// instances cannot race each other.
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

// Insert creates the account row. The unique constraint on email decides the
// outcome; there is no exists-check beforehand.
func (r *PGRepository) Insert(ctx context.Context, email, passwordHash string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO users (email, password_hash, balance, is_logged_in)
		VALUES ($1, $2, 0, false)
		ON CONFLICT (email) DO NOTHING
	`, email, passwordHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shared.ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEmailTaken
	}
	return nil
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT email, password_hash, balance::text, is_logged_in, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrUnknownEmail
		}
		return nil, err
	}
	return user, nil
}

// MarkLoggedIn sets the session flag after a successful authentication.
func (r *PGRepository) MarkLoggedIn(ctx context.Context, email string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_logged_in = true, updated_at = now() WHERE email = $1
	`, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUnknownEmail
	}
	return nil
}

// MarkLoggedOut clears the session flag only when it is currently set. The
// affected-row count tells the service whether anything changed.
func (r *PGRepository) MarkLoggedOut(ctx context.Context, email string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET is_logged_in = false, updated_at = now()
		WHERE email = $1 AND is_logged_in = true
	`, email)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AddToBalance applies a signed delta in a single statement so the
// read-modify-write happens inside the database. No lower bound is enforced.
func (r *PGRepository) AddToBalance(ctx context.Context, email string, delta decimal.Decimal) (decimal.Decimal, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var balance string
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance + $1::numeric, updated_at = now()
		WHERE email = $2
		RETURNING balance::text
	`, delta.String(), email).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, shared.ErrUnknownEmail
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(balance)
}

// ListAll returns a full snapshot of every account.
func (r *PGRepository) ListAll(ctx context.Context) ([]User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT email, password_hash, balance::text, is_logged_in, created_at, updated_at
		FROM users
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var balance string
	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&u.Email, &u.PasswordHash, &balance, &u.IsLoggedIn, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return nil, err
	}
	u.Balance = parsed
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = updatedAt.Time
	}
	return &u, nil
}

var _ Repository = (*PGRepository)(nil)
