package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/repository"
)

func TestWithTxCommitsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := New()
	repos := s.Repositories()

	err := repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		a, err := tx.LockAccount(ctx, "u1")
		require.NoError(t, err)
		_, err = tx.InsertEntry(ctx, models.LedgerEntry{UserID: "u1", Amount: 50, Kind: models.KindMintCredit, IdempotencyKey: "k1"})
		require.NoError(t, err)
		_, err = tx.SetBalance(ctx, "u1", a.Balance+50)
		return err
	})
	require.NoError(t, err)

	acc, err := repos.Ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Balance)

	boom := errors.New("boom")
	err = repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, _ = tx.LockAccount(ctx, "u1")
		_, err := tx.InsertEntry(ctx, models.LedgerEntry{UserID: "u1", Amount: 5, Kind: models.KindMintCredit, IdempotencyKey: "k2"})
		require.NoError(t, err)
		_, err = tx.SetBalance(ctx, "u1", 55)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	acc, _ = repos.Ledger.GetAccount(ctx, "u1")
	assert.Equal(t, int64(50), acc.Balance)
	_, err = repos.Ledger.FindEntry(ctx, models.KindMintCredit, "k2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 1, s.EntryCount())
}

func TestInsertEntryUniquePerKind(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	insert := func(kind models.EntryKind, key string) error {
		return repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
			_, err := tx.InsertEntry(ctx, models.LedgerEntry{UserID: "u", Amount: 1, Kind: kind, IdempotencyKey: key})
			return err
		})
	}
	require.NoError(t, insert(models.KindMintCredit, "same"))
	assert.ErrorIs(t, insert(models.KindMintCredit, "same"), repository.ErrDuplicate)
	// same key, different kind is a different entry
	assert.NoError(t, insert(models.KindPaymentCredit, "same"))
}

func TestSetBalanceRejectsNegative(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	err := repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, _ = tx.LockAccount(ctx, "u")
		_, err := tx.SetBalance(ctx, "u", -1)
		return err
	})
	assert.Error(t, err)
}

func TestListEntriesNewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	add := func(kind models.EntryKind, key string, amt int64) {
		require.NoError(t, repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
			_, err := tx.InsertEntry(ctx, models.LedgerEntry{UserID: "u", Amount: amt, Kind: kind, IdempotencyKey: key})
			return err
		}))
	}
	add(models.KindMintCredit, "a", 10)
	add(models.KindSessionDebit, "b", -3)
	add(models.KindMintCredit, "c", 7)

	all, err := repos.Ledger.ListEntries(ctx, "u", nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].IdempotencyKey)

	kind := models.KindMintCredit
	mints, err := repos.Ledger.ListEntries(ctx, "u", &kind, 1, 1)
	require.NoError(t, err)
	require.Len(t, mints, 1)
	assert.Equal(t, "a", mints[0].IdempotencyKey)
}

func TestSessionEndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	require.NoError(t, repos.Ledger.WithTx(ctx, func(tx repository.LedgerTx) error {
		_, err := tx.InsertSession(ctx, models.Session{ID: "s1", UserID: "u", Status: models.SessionActive, Cost: 10})
		return err
	}))

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, err := repos.Sessions.End(ctx, "s1", first)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, s.Status)

	s, err = repos.Sessions.End(ctx, "s1", first.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, s.EndedAt)
	assert.True(t, s.EndedAt.Equal(first))

	_, err = repos.Sessions.End(ctx, "missing", first)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUsersWallet(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	u, err := repos.Users.Create(ctx, "alice", "alice@example.com", "hash", "user")
	require.NoError(t, err)

	_, err = repos.Users.Create(ctx, "alice2", "ALICE@example.com", "hash", "user")
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	u, err = repos.Users.SetWallet(ctx, u.ID, "0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)
	require.NotNil(t, u.WalletAddress)

	got, err := repos.Users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.WalletAddress, got.WalletAddress)
}
