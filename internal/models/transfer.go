package models

import (
	"math/big"
	"strings"
)

// VerifiedTransfer is a decoded ERC-20 Transfer log that matched the expected
// recipient. It is never stored; Provenance is its durable trace.
type VerifiedTransfer struct {
	ChainID     int64
	ChainName   string
	Contract    string
	From        string
	Recipient   string
	Amount      *big.Int
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
}

// Provenance is recorded as ledger entry metadata for on-chain credits.
type Provenance struct {
	ChainID     int64  `json:"chain_id"`
	ChainName   string `json:"chain"`
	Contract    string `json:"contract"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	RawAmount   string `json:"raw_amount"`
}

func (t VerifiedTransfer) Provenance() Provenance {
	raw := "0"
	if t.Amount != nil {
		raw = t.Amount.String()
	}
	return Provenance{
		ChainID:     t.ChainID,
		ChainName:   t.ChainName,
		Contract:    t.Contract,
		TxHash:      strings.ToLower(t.TxHash),
		BlockNumber: t.BlockNumber,
		RawAmount:   raw,
	}
}

func (p Provenance) Metadata() map[string]any {
	return map[string]any{
		"chain_id":     p.ChainID,
		"chain":        p.ChainName,
		"contract":     p.Contract,
		"tx_hash":      p.TxHash,
		"block_number": p.BlockNumber,
		"raw_amount":   p.RawAmount,
	}
}
