package repository

import (
	"context"
	"errors"
	"time"

	"github.com/baharkarakas/tokenledger/internal/models"
)

var (
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate is returned when a unique constraint rejects an insert,
	// e.g. a second ledger entry with the same (kind, idempotency_key).
	ErrDuplicate = errors.New("repository: duplicate key")
)

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	SetWallet(ctx context.Context, id, address string) (models.User, error)
}

// LedgerTx is the unit of work handed to Ledger.WithTx. Everything done
// through it commits or rolls back together.
type LedgerTx interface {
	// LockAccount creates the account row if missing and locks it until the
	// transaction ends, serializing writers for the same user.
	LockAccount(ctx context.Context, userID string) (models.Account, error)
	FindEntry(ctx context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error)
	InsertEntry(ctx context.Context, e models.LedgerEntry) (models.LedgerEntry, error)
	SetBalance(ctx context.Context, userID string, balance int64) (models.Account, error)
	InsertSession(ctx context.Context, s models.Session) (models.Session, error)
}

type Ledger interface {
	// Atomik iş bloğu: fn hata dönerse hiçbir şey kalıcı olmaz.
	WithTx(ctx context.Context, fn func(LedgerTx) error) error

	FindEntry(ctx context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error)
	GetAccount(ctx context.Context, userID string) (models.Account, error)
	ListEntries(ctx context.Context, userID string, kind *models.EntryKind, limit, offset int) ([]models.LedgerEntry, error)
}

type Sessions interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Session, error)
	// End sets ENDED and ended_at only if the session is still ACTIVE and
	// returns the stored row either way.
	End(ctx context.Context, id string, at time.Time) (models.Session, error)
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}
