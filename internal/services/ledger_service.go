package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/metrics"
	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
)

// LedgerService is the only writer of account balances.
type LedgerService struct {
	repo repo.Ledger
	log  *zap.Logger
}

func NewLedgerService(r repo.Ledger, log *zap.Logger) *LedgerService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{repo: r, log: log}
}

// txHook runs inside the ledger transaction after the entry and balance
// are written. An error rolls back everything.
type txHook func(ctx context.Context, tx repo.LedgerTx, entry models.LedgerEntry) error

// errEntryRace marks a unique violation on the entry insert itself, i.e. a
// concurrent call with the same (kind, key) committed first.
var errEntryRace = errors.New("ledger entry inserted concurrently")

// ApplyEntry applies amount to userID's balance and records it under
// (kind, idempotencyKey). When that pair already exists the stored entry
// is returned with created=false and nothing changes.
func (s *LedgerService) ApplyEntry(ctx context.Context, userID string, amount int64, kind models.EntryKind, idempotencyKey string, metadata map[string]any) (models.LedgerEntry, bool, error) {
	return s.apply(ctx, userID, amount, kind, idempotencyKey, metadata, nil)
}

func validateEntry(userID string, amount int64, kind models.EntryKind, key string) error {
	switch {
	case strings.TrimSpace(userID) == "":
		return apperr.New(apperr.KindInvalidInput, "user id is required")
	case strings.TrimSpace(key) == "":
		return apperr.New(apperr.KindInvalidInput, "idempotency key is required")
	case !kind.Valid():
		return apperr.Newf(apperr.KindInvalidInput, "unknown entry kind %q", kind)
	case amount == 0:
		return apperr.New(apperr.KindInvalidInput, "amount must be non-zero")
	case kind.Debit() && amount > 0:
		return apperr.Newf(apperr.KindInvalidInput, "%s amount must be negative", kind)
	case !kind.Debit() && amount < 0:
		return apperr.Newf(apperr.KindInvalidInput, "%s amount must be positive", kind)
	}
	return nil
}

func (s *LedgerService) apply(ctx context.Context, userID string, amount int64, kind models.EntryKind, key string, metadata map[string]any, hook txHook) (models.LedgerEntry, bool, error) {
	if err := validateEntry(userID, amount, kind, key); err != nil {
		return models.LedgerEntry{}, false, err
	}

	var (
		entry   models.LedgerEntry
		created bool
	)
	err := s.repo.WithTx(ctx, func(tx repo.LedgerTx) error {
		acct, err := tx.LockAccount(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		existing, err := tx.FindEntry(ctx, kind, key)
		if err == nil {
			entry = existing
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("find entry: %w", err)
		}

		if !acct.CanApply(amount) {
			return apperr.Newf(apperr.KindInsufficientBalance,
				"insufficient balance: have %d, need %d", acct.Balance, -amount)
		}
		if amount > 0 && acct.Balance > math.MaxInt64-amount {
			return apperr.New(apperr.KindInvalidInput, "credit would overflow the balance")
		}

		e, err := tx.InsertEntry(ctx, models.LedgerEntry{
			UserID:         userID,
			Amount:         amount,
			Kind:           kind,
			IdempotencyKey: key,
			Metadata:       metadata,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			return errEntryRace
		}
		if err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		if _, err := tx.SetBalance(ctx, userID, acct.Balance+amount); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}
		if hook != nil {
			if err := hook(ctx, tx, e); err != nil {
				return err
			}
		}
		entry, created = e, true
		return nil
	})

	switch {
	case errors.Is(err, errEntryRace):
		// kaybeden taraf: rollback oldu, kazananın kaydını oku
		existing, ferr := s.repo.FindEntry(ctx, kind, key)
		if ferr != nil {
			s.fail(kind, "reread", userID, key, ferr)
			return models.LedgerEntry{}, false, apperr.Wrap(apperr.KindInternal, "reread ledger entry", ferr)
		}
		metrics.LedgerDuplicatesTotal.WithLabelValues(string(kind)).Inc()
		return existing, false, nil
	case err != nil:
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
			metrics.LedgerFailuresTotal.WithLabelValues(string(kind), string(ae.Kind)).Inc()
			return models.LedgerEntry{}, false, err
		}
		s.fail(kind, "storage", userID, key, err)
		return models.LedgerEntry{}, false, err
	}

	if created {
		metrics.LedgerEntriesTotal.WithLabelValues(string(kind)).Inc()
		s.log.Info("ledger entry applied",
			zap.String("entry_id", entry.ID),
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
			zap.Int64("amount", amount))
	} else {
		metrics.LedgerDuplicatesTotal.WithLabelValues(string(kind)).Inc()
		s.log.Info("ledger entry already applied",
			zap.String("entry_id", entry.ID),
			zap.String("kind", string(kind)),
			zap.String("idempotency_key", key))
	}
	return entry, created, nil
}

func (s *LedgerService) fail(kind models.EntryKind, reason, userID, key string, err error) {
	metrics.LedgerFailuresTotal.WithLabelValues(string(kind), reason).Inc()
	s.log.Error("ledger operation failed",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("idempotency_key", key),
		zap.Error(err))
}

// FindEntry returns the entry for (kind, key) or an apperr NotFound.
func (s *LedgerService) FindEntry(ctx context.Context, kind models.EntryKind, key string) (models.LedgerEntry, error) {
	e, err := s.repo.FindEntry(ctx, kind, key)
	if errors.Is(err, repo.ErrNotFound) {
		return models.LedgerEntry{}, apperr.New(apperr.KindNotFound, "ledger entry not found")
	}
	return e, err
}

// Balance returns the user's account; users without entries have balance 0.
func (s *LedgerService) Balance(ctx context.Context, userID string) (models.Account, error) {
	a, err := s.repo.GetAccount(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Account{UserID: userID}, nil
	}
	return a, err
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *LedgerService) Entries(ctx context.Context, userID string, kind *models.EntryKind, limit, offset int) ([]models.LedgerEntry, error) {
	limit, offset = clampPage(limit, offset)
	return s.repo.ListEntries(ctx, userID, kind, limit, offset)
}
