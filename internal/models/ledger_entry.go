package models

import (
	"fmt"
	"time"
)

type EntryKind string

const (
	KindMintCredit    EntryKind = "MINT_CREDIT"
	KindSessionDebit  EntryKind = "SESSION_DEBIT"
	KindRefund        EntryKind = "REFUND"
	KindPaymentCredit EntryKind = "PAYMENT_CREDIT"
)

func (k EntryKind) Valid() bool {
	switch k {
	case KindMintCredit, KindSessionDebit, KindRefund, KindPaymentCredit:
		return true
	}
	return false
}

// Debit reports whether entries of this kind must carry a negative amount.
func (k EntryKind) Debit() bool { return k == KindSessionDebit }

// ParseEntryKind is used by the list endpoint filter.
func ParseEntryKind(s string) (EntryKind, error) {
	k := EntryKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
	return k, nil
}

// LedgerEntry is an immutable balance change. Amount is signed:
// credits are positive, debits negative.
type LedgerEntry struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Amount         int64          `json:"amount"`
	Kind           EntryKind      `json:"kind"`
	IdempotencyKey string         `json:"idempotency_key"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
