package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
)

// PaymentEvent is a settled fiat payment pushed by the payment provider.
type PaymentEvent struct {
	EventID string `json:"event_id" validate:"required,max=255"`
	UserID  string `json:"user_id" validate:"required"`
	Amount  int64  `json:"amount" validate:"gt=0"`
}

// PaymentService credits PAYMENT_CREDIT entries keyed by the provider's
// event id, so webhook redeliveries are no-ops.
type PaymentService struct {
	ledger *LedgerService
	users  repo.Users
	secret []byte
	audit  *Auditor
	log    *zap.Logger
}

func NewPaymentService(ledger *LedgerService, users repo.Users, secret string, audit *Auditor, log *zap.Logger) *PaymentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentService{ledger: ledger, users: users, secret: []byte(secret), audit: audit, log: log}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the X-Signature header against body. With no
// secret configured every delivery is rejected.
func (s *PaymentService) VerifySignature(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return apperr.New(apperr.KindUnauthorized, "payment webhook is not configured")
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(got) == 0 {
		return apperr.New(apperr.KindUnauthorized, "invalid signature")
	}
	want, _ := hex.DecodeString(Sign(s.secret, body))
	if !hmac.Equal(got, want) {
		return apperr.New(apperr.KindUnauthorized, "invalid signature")
	}
	return nil
}

// Credit applies ev for an existing user only, so a payload can never open an
// account for an unknown id.
func (s *PaymentService) Credit(ctx context.Context, ev PaymentEvent) (CreditResult, error) {
	if _, err := s.users.GetByID(ctx, ev.UserID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CreditResult{}, apperr.Newf(apperr.KindInvalidInput, "unknown user_id %q", ev.UserID)
		}
		return CreditResult{}, err
	}
	entry, created, err := s.ledger.ApplyEntry(ctx, ev.UserID, ev.Amount, models.KindPaymentCredit, ev.EventID, map[string]any{
		"event_id": ev.EventID,
		"source":   "payment_webhook",
	})
	if err != nil {
		return CreditResult{}, err
	}
	if created {
		s.audit.Record("ledger_entry", entry.ID, models.AuditPaymentCredit, map[string]any{
			"user_id":  ev.UserID,
			"event_id": ev.EventID,
			"amount":   ev.Amount,
		})
	}
	return resultFor(ev.UserID, entry, created), nil
}
