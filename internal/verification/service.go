package verification

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vaultd-io/vaultd/internal/observability"
	"github.com/vaultd-io/vaultd/internal/shared"
)

// Dispatcher schedules asynchronous delivery of an issued code. The issuing
// request never waits on the outcome of the delivery itself.
type Dispatcher interface {
	DispatchCode(ctx context.Context, email, code string) error
}

// Service owns the verification-code lifecycle: generation, the
// one-live-entry-per-email invariant and one-time consumption.
type Service struct {
	repo       Repository
	dispatcher Dispatcher
	metrics    *observability.Metrics
	logger     *slog.Logger
	generate   func() (string, error)
}

// NewService constructs a new Service.
func NewService(repo Repository, dispatcher Dispatcher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		generate:   GenerateCode,
	}
}

// WithGenerator overrides the code generator for testing.
func (s *Service) WithGenerator(fn func() (string, error)) {
	if fn != nil {
		s.generate = fn
	}
}

// Issue generates a fresh code for the email and persists it, invalidating
// any previously issued code whether or not it was consumed. Delivery is
// scheduled after the upsert; a dispatch failure is logged and counted but
// never fails the issuing request.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	if err := s.repo.Upsert(ctx, email, code); err != nil {
		return "", err
	}
	if err := s.dispatcher.DispatchCode(ctx, email, code); err != nil {
		s.logger.Error("dispatch verification code", slog.String("email", email), slog.Any("error", err))
		s.metrics.DeliveryDropped()
	}
	return code, nil
}

// Validate consumes the code for the email. The conditional update in the
// store is the only authority on success; the classifying read afterwards
// merely picks which error to report and cannot un-consume anything.
func (s *Service) Validate(ctx context.Context, email, code string) error {
	consumed, err := s.repo.Consume(ctx, email, code)
	if err != nil {
		return err
	}
	if consumed {
		return nil
	}

	entry, err := s.repo.Find(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrCodeNotFound) {
			return shared.ErrCodeNotFound
		}
		return err
	}
	if entry.IsUsed {
		return shared.ErrCodeAlreadyUsed
	}
	return shared.ErrCodeMismatch
}

// ListAll returns a full snapshot of every entry for export/audit.
func (s *Service) ListAll(ctx context.Context) ([]Entry, error) {
	return s.repo.ListAll(ctx)
}
