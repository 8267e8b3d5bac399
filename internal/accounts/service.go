package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/vaultd-io/vaultd/internal/shared"
)

// Service wraps account business rules. It keeps no state of its own; every
// operation is a round trip through the repository.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register creates an account with a bcrypt digest, zero balance and a
// cleared session flag. The plaintext password never leaves this function.
func (s *Service) Register(ctx context.Context, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Insert(ctx, email, string(hash))
}

// Authenticate validates email/password credentials and flips the session
// flag on success. Unknown email and wrong password both surface as
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrUnknownEmail) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.MarkLoggedIn(ctx, email); err != nil {
		return nil, err
	}
	user.IsLoggedIn = true
	return user, nil
}

// EndSession clears the session flag. A second logout in a row is a conflict,
// not a no-op.
func (s *Service) EndSession(ctx context.Context, email string) error {
	cleared, err := s.repo.MarkLoggedOut(ctx, email)
	if err != nil {
		return err
	}
	if cleared {
		return nil
	}
	// Nothing changed: either the account does not exist or the flag was
	// already false. The follow-up read only classifies the failure.
	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		return err
	}
	return shared.ErrAlreadyLoggedOut
}

// AdjustBalance adds a signed delta to the balance and returns the new value.
// Negative balances are allowed; the store does not enforce a lower bound.
func (s *Service) AdjustBalance(ctx context.Context, email string, delta decimal.Decimal) (decimal.Decimal, error) {
	return s.repo.AddToBalance(ctx, email, delta)
}

// ListAll returns a full snapshot of every account for export/audit.
func (s *Service) ListAll(ctx context.Context) ([]User, error) {
	return s.repo.ListAll(ctx)
}
