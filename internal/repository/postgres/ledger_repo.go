package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/repository"
)

type ledgerRepo struct{ pool *pgxpool.Pool }

func NewLedger(pool *pgxpool.Pool) repository.Ledger {
	return &ledgerRepo{pool: pool}
}

const entryCols = `id, user_id, amount, kind, idempotency_key, metadata, created_at`

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Kind, &e.IdempotencyKey, &e.Metadata, &e.CreatedAt)
	return e, err
}

// WithTx runs fn in one READ COMMITTED transaction. Same-user writers are
// serialized by LockAccount's row lock, duplicates by the unique index.
func (r *ledgerRepo) WithTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	// panic dahil her çıkışta rollback; commit sonrası no-op
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ledgerRepo) FindEntry(ctx context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE kind=$1 AND idempotency_key=$2`, kind, key))
	return e, mapErr(err)
}

func (r *ledgerRepo) GetAccount(ctx context.Context, userID string) (models.Account, error) {
	var a models.Account
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, balance, updated_at FROM accounts WHERE user_id=$1`, userID,
	).Scan(&a.UserID, &a.Balance, &a.UpdatedAt)
	return a, mapErr(err)
}

func (r *ledgerRepo) ListEntries(ctx context.Context, userID string, kind *models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	var k *string
	if kind != nil {
		s := string(*kind)
		k = &s
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+entryCols+`
		   FROM ledger_entries
		  WHERE user_id=$1 AND ($2::text IS NULL OR kind=$2)
		  ORDER BY created_at DESC, id
		  LIMIT $3 OFFSET $4`,
		userID, k, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.LedgerEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type ledgerTx struct{ tx pgx.Tx }

func (t *ledgerTx) LockAccount(ctx context.Context, userID string) (models.Account, error) {
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO accounts(user_id, balance, updated_at) VALUES($1, 0, now())
		 ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return models.Account{}, err
	}
	var a models.Account
	err := t.tx.QueryRow(ctx,
		`SELECT user_id, balance, updated_at FROM accounts WHERE user_id=$1 FOR UPDATE`, userID,
	).Scan(&a.UserID, &a.Balance, &a.UpdatedAt)
	return a, mapErr(err)
}

func (t *ledgerTx) FindEntry(ctx context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx,
		`SELECT `+entryCols+` FROM ledger_entries WHERE kind=$1 AND idempotency_key=$2`, kind, key))
	return e, mapErr(err)
}

func (t *ledgerTx) InsertEntry(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	out, err := scanEntry(t.tx.QueryRow(ctx,
		`INSERT INTO ledger_entries(id, user_id, amount, kind, idempotency_key, metadata)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING `+entryCols,
		e.ID, e.UserID, e.Amount, e.Kind, e.IdempotencyKey, e.Metadata,
	))
	return out, mapErr(err)
}

func (t *ledgerTx) SetBalance(ctx context.Context, userID string, balance int64) (models.Account, error) {
	var a models.Account
	err := t.tx.QueryRow(ctx,
		`UPDATE accounts SET balance=$2, updated_at=now()
		  WHERE user_id=$1
		  RETURNING user_id, balance, updated_at`,
		userID, balance,
	).Scan(&a.UserID, &a.Balance, &a.UpdatedAt)
	return a, mapErr(err)
}

func (t *ledgerTx) InsertSession(ctx context.Context, s models.Session) (models.Session, error) {
	if s.Meta == nil {
		s.Meta = map[string]any{}
	}
	out, err := scanSession(t.tx.QueryRow(ctx,
		`INSERT INTO broadcast_sessions(id, user_id, status, cost, voice, locale, meta)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING `+sessionCols,
		s.ID, s.UserID, s.Status, s.Cost, s.Voice, s.Locale, s.Meta,
	))
	return out, mapErr(err)
}
