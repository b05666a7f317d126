package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/chain"
	"github.com/baharkarakas/tokenledger/internal/models"
	"github.com/baharkarakas/tokenledger/internal/settlement"
)

type CreditVerifier interface {
	VerifyAndPrepareCredit(ctx context.Context, userID, txHash string) (settlement.Credit, error)
}

type CreditResult struct {
	Credited  int64               `json:"credited"`
	Duplicate bool                `json:"duplicate"`
	Entry     *models.LedgerEntry `json:"entry,omitempty"`
}

// resultFor hides another user's entry when the key was already used by them.
func resultFor(userID string, e models.LedgerEntry, created bool) CreditResult {
	if e.UserID != userID {
		return CreditResult{Duplicate: true}
	}
	return CreditResult{Credited: e.Amount, Duplicate: !created, Entry: &e}
}

type MintService struct {
	ledger   *LedgerService
	verifier CreditVerifier
	audit    *Auditor
	log      *zap.Logger
}

func NewMintService(ledger *LedgerService, verifier CreditVerifier, audit *Auditor, log *zap.Logger) *MintService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MintService{ledger: ledger, verifier: verifier, audit: audit, log: log}
}

// CreditFromMint credits the user for an on-chain mint. The lower-cased tx
// hash is the idempotency key, so a resubmitted hash never credits twice.
func (s *MintService) CreditFromMint(ctx context.Context, userID, txHash string) (CreditResult, error) {
	hash, err := chain.NormalizeTxHash(txHash)
	if err != nil {
		return CreditResult{}, err
	}

	// sadece kendi kaydı için zincire gitme; başkasınınkini verifier reddeder
	existing, err := s.ledger.FindEntry(ctx, models.KindMintCredit, hash)
	switch {
	case err == nil && existing.UserID == userID:
		s.audit.Record("mint", hash, models.AuditMintDuplicate, map[string]any{"user_id": userID})
		return resultFor(userID, existing, false), nil
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return CreditResult{}, err
	}

	credit, err := s.verifier.VerifyAndPrepareCredit(ctx, userID, hash)
	if err != nil {
		if k := apperr.KindOf(err); k != apperr.KindInternal {
			s.audit.Record("mint", hash, models.AuditMintRejected, map[string]any{
				"user_id": userID,
				"reason":  string(k),
			})
		} else {
			s.log.Error("mint verification failed", zap.String("user_id", userID), zap.String("tx", hash), zap.Error(err))
		}
		return CreditResult{}, err
	}

	entry, created, err := s.ledger.ApplyEntry(ctx, userID, credit.Amount, models.KindMintCredit, hash, credit.Provenance.Metadata())
	if err != nil {
		return CreditResult{}, err
	}

	action := models.AuditMintVerified
	if !created {
		action = models.AuditMintDuplicate
	}
	s.audit.Record("ledger_entry", entry.ID, action, map[string]any{
		"user_id":  userID,
		"tx_hash":  hash,
		"chain_id": credit.Provenance.ChainID,
		"contract": credit.Provenance.Contract,
		"amount":   credit.Amount,
	})
	return resultFor(userID, entry, created), nil
}
