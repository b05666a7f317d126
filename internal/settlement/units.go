package settlement

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	errZeroAmount = errors.New("amount converts to zero ledger units")
	errOverflow   = errors.New("amount exceeds ledger range")
)

// ConvertUnits maps a raw on-chain amount with chainDecimals to the ledger's
// smallest unit, flooring any remainder. Equal decimals pass the value through.
func ConvertUnits(raw *big.Int, chainDecimals, ledgerDecimals int32) (int64, error) {
	if raw == nil || raw.Sign() <= 0 {
		return 0, errZeroAmount
	}
	var v *big.Int
	if chainDecimals == ledgerDecimals {
		v = new(big.Int).Set(raw)
	} else {
		v = decimal.NewFromBigInt(raw, 0).Shift(ledgerDecimals - chainDecimals).Floor().BigInt()
	}
	if v.Sign() <= 0 {
		return 0, errZeroAmount
	}
	if !v.IsInt64() {
		return 0, errOverflow
	}
	return v.Int64(), nil
}
