package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/db"
	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/repository"
	"github.com/baharkarakas/tokenledger/internal/repository/postgres"
	"github.com/baharkarakas/tokenledger/internal/services"
)

// TOKENLEDGER_TEST_DATABASE_URL yoksa atlanır.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TOKENLEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TOKENLEDGER_TEST_DATABASE_URL not set")
	}
	pool, err := db.NewPool(t.Context(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.RunMigrations(t.Context(), pool, zap.NewNop()))
	return pool
}

func TestLedgerConcurrentDuplicateCredits(t *testing.T) {
	pool := testPool(t)
	repos := postgres.NewRepositories(pool)
	svc := services.NewLedgerService(repos.Ledger, nil)

	user := "it-" + uuid.NewString()
	key := "0x" + uuid.NewString()

	const n = 8
	var wg sync.WaitGroup
	created := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := svc.ApplyEntry(context.Background(), user, 50, models.KindMintCredit, key, nil)
			if assert.NoError(t, err) {
				created <- ok
			}
		}()
	}
	wg.Wait()
	close(created)

	wins := 0
	for ok := range created {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	acc, err := svc.Balance(t.Context(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Balance)
}

func TestLedgerConcurrentDebitsNeverOverdraw(t *testing.T) {
	pool := testPool(t)
	repos := postgres.NewRepositories(pool)
	svc := services.NewLedgerService(repos.Ledger, nil)
	user := "it-" + uuid.NewString()

	_, _, err := svc.ApplyEntry(t.Context(), user, 30, models.KindPaymentCredit, "evt-"+user, nil)
	require.NoError(t, err)

	const n = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.ApplyEntry(context.Background(), user, -10, models.KindSessionDebit, uuid.NewString(), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.KindOf(err) == apperr.KindInsufficientBalance:
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, n-3, short)
	acc, err := svc.Balance(t.Context(), user)
	require.NoError(t, err)
	assert.Zero(t, acc.Balance)
}

func TestSessionStartAndEnd(t *testing.T) {
	pool := testPool(t)
	repos := postgres.NewRepositories(pool)
	ledger := services.NewLedgerService(repos.Ledger, nil)
	audit := services.NewAuditor(repos.AuditLogs, nil, nil)
	sessions := services.NewSessionService(ledger, repos.Sessions, 5, audit, nil)
	user := "it-" + uuid.NewString()

	_, _, err := ledger.ApplyEntry(t.Context(), user, 5, models.KindRefund, "refund-"+user, map[string]any{"reason": "test"})
	require.NoError(t, err)

	s, err := sessions.Start(t.Context(), user, services.SessionMeta{Voice: "v", Meta: map[string]any{"room": "a"}})
	require.NoError(t, err)
	assert.Equal(t, models.SessionActive, s.Status)

	debit, err := ledger.FindEntry(t.Context(), models.KindSessionDebit, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-5), debit.Amount)

	_, err = sessions.Start(t.Context(), user, services.SessionMeta{})
	assert.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	ended, err := sessions.EndSession(t.Context(), user, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, ended.Status)
	require.NotNil(t, ended.EndedAt)

	_, err = repos.Sessions.End(t.Context(), "missing-"+user, time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsersWallet(t *testing.T) {
	pool := testPool(t)
	repos := postgres.NewRepositories(pool)
	email := uuid.NewString() + "@it.local"

	u, err := repos.Users.Create(t.Context(), "ituser", email, "hash", "user")
	require.NoError(t, err)

	_, err = repos.Users.Create(t.Context(), "ituser", email, "hash", "user")
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	addr := "0xAbCdEf0123456789abcdef0123456789ABCDEF01"
	u, err = repos.Users.SetWallet(t.Context(), u.ID, addr)
	require.NoError(t, err)
	require.NotNil(t, u.WalletAddress)
	assert.Equal(t, addr, *u.WalletAddress)
}
