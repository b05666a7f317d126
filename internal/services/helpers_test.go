package services

import (
	"context"

	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
	"github.com/baharkarakas/tokenledger/internal/repository/memory"
)

type fixture struct {
	store  *memory.Store
	repos  memory.Repositories
	ledger *LedgerService
	audit  *Auditor
}

// newFixture uses a synchronous auditor so tests can read audit rows
// right after a call returns.
func newFixture() *fixture {
	st := memory.New()
	repos := st.Repositories()
	return &fixture{
		store:  st,
		repos:  repos,
		ledger: NewLedgerService(repos.Ledger, nil),
		audit:  NewAuditor(repos.AuditLogs, nil, nil),
	}
}

func (f *fixture) balance(userID string) int64 {
	a, err := f.ledger.Balance(context.Background(), userID)
	if err != nil {
		panic(err)
	}
	return a.Balance
}

func (f *fixture) fund(userID string, amount int64, key string) {
	if _, _, err := f.ledger.ApplyEntry(context.Background(), userID, amount, models.KindPaymentCredit, key, nil); err != nil {
		panic(err)
	}
}

// racingLedger hides committed entries from FindEntry inside the
// transaction, as if a concurrent writer committed between the check and
// the insert.
type racingLedger struct{ repo.Ledger }

func (r racingLedger) WithTx(ctx context.Context, fn func(repo.LedgerTx) error) error {
	return r.Ledger.WithTx(ctx, func(tx repo.LedgerTx) error { return fn(blindTx{tx}) })
}

type blindTx struct{ repo.LedgerTx }

func (blindTx) FindEntry(context.Context, models.EntryKind, string) (models.LedgerEntry, error) {
	return models.LedgerEntry{}, repo.ErrNotFound
}
