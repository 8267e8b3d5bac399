package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultd-io/vaultd/internal/shared"
)

// memoryRepo reproduces the store's guarantees: one entry per email and
// consume-if-pending under a single lock, matching the conditional update.
type memoryRepo struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entries: make(map[string]*Entry)}
}

func (r *memoryRepo) Upsert(ctx context.Context, email, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[email] = &Entry{Email: email, Code: code, CreatedAt: time.Now()}
	return nil
}

func (r *memoryRepo) Consume(ctx context.Context, email, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[email]
	if !ok || e.IsUsed || e.Code != code {
		return false, nil
	}
	e.IsUsed = true
	return true, nil
}

func (r *memoryRepo) Find(ctx context.Context, email string) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[email]
	if !ok {
		return nil, shared.ErrCodeNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memoryRepo) ListAll(ctx context.Context) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out, nil
}

type captureDispatcher struct {
	mu    sync.Mutex
	sent  []string
	fail  error
	calls int
}

func (d *captureDispatcher) DispatchCode(ctx context.Context, email, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail != nil {
		return d.fail
	}
	d.sent = append(d.sent, email+":"+code)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestService(repo Repository, dispatcher Dispatcher) *Service {
	return NewService(repo, dispatcher, nil, discardLogger())
}

func TestIssueThenValidate(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &captureDispatcher{})
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)
	require.Len(t, code, 6)

	require.NoError(t, svc.Validate(ctx, "user@test.local", code))
}

func TestReissueInvalidatesPreviousCode(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &captureDispatcher{})
	ctx := context.Background()

	first, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)

	codes := []string{"111111", "222222"}
	svc.WithGenerator(func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	})
	second, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	err = svc.Validate(ctx, "user@test.local", first)
	require.ErrorIs(t, err, shared.ErrCodeMismatch)
	require.NoError(t, svc.Validate(ctx, "user@test.local", second))
}

func TestValidateTwiceReportsAlreadyUsed(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &captureDispatcher{})
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)

	require.NoError(t, svc.Validate(ctx, "user@test.local", code))
	err = svc.Validate(ctx, "user@test.local", code)
	require.ErrorIs(t, err, shared.ErrCodeAlreadyUsed)
}

func TestValidateWithoutIssuedCode(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &captureDispatcher{})
	err := svc.Validate(context.Background(), "ghost@test.local", "123456")
	require.ErrorIs(t, err, shared.ErrCodeNotFound)
}

func TestValidateMismatchLeavesEntryPending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &captureDispatcher{})
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)

	err = svc.Validate(ctx, "user@test.local", "000000")
	require.ErrorIs(t, err, shared.ErrCodeMismatch)

	entry, err := repo.Find(ctx, "user@test.local")
	require.NoError(t, err)
	require.False(t, entry.IsUsed)

	require.NoError(t, svc.Validate(ctx, "user@test.local", code))
}

func TestReissueAfterConsumptionResetsUsedFlag(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &captureDispatcher{})
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)
	require.NoError(t, svc.Validate(ctx, "user@test.local", code))

	fresh, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)

	entry, err := repo.Find(ctx, "user@test.local")
	require.NoError(t, err)
	require.False(t, entry.IsUsed)
	require.NoError(t, svc.Validate(ctx, "user@test.local", fresh))
}

func TestIssueSurvivesDispatchFailure(t *testing.T) {
	dispatcher := &captureDispatcher{fail: errors.New("queue down")}
	repo := newMemoryRepo()
	svc := newTestService(repo, dispatcher)
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.calls)

	// The code was persisted even though delivery could not be scheduled.
	require.NoError(t, svc.Validate(ctx, "user@test.local", code))
}

func TestIssueDispatchesIssuedCode(t *testing.T) {
	dispatcher := &captureDispatcher{}
	svc := newTestService(newMemoryRepo(), dispatcher)

	code, err := svc.Issue(context.Background(), "user@test.local")
	require.NoError(t, err)
	require.Equal(t, []string{"user@test.local:" + code}, dispatcher.sent)
}

func TestConcurrentValidationSingleConsumer(t *testing.T) {
	svc := newTestService(newMemoryRepo(), &captureDispatcher{})
	ctx := context.Background()

	code, err := svc.Issue(ctx, "user@test.local")
	require.NoError(t, err)

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Validate(ctx, "user@test.local", code)
		}()
	}
	wg.Wait()
	close(errs)

	var successes int
	for err := range errs {
		if err == nil {
			successes++
		} else {
			require.ErrorIs(t, err, shared.ErrCodeAlreadyUsed)
		}
	}
	require.Equal(t, 1, successes)
}
