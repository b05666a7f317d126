// Package settlement turns an on-chain transfer into a ledger credit.
package settlement

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/chain"
	"github.com/baharkarakas/tokenledger/internal/metrics"
	"github.com/baharkarakas/tokenledger/internal/models"
)

// WalletLookup returns the wallet linked to a user; ok is false when none is.
type WalletLookup interface {
	LinkedWallet(ctx context.Context, userID string) (address string, ok bool, err error)
}

type HeadReader interface {
	HeadBlock(ctx context.Context, chainID int64) (uint64, error)
}

type Policy struct {
	LedgerDecimals   int32
	ChainDecimals    map[int64]int32
	MinConfirmations map[int64]uint64
	// RequireMint accepts only transfers from the zero address.
	RequireMint bool
}

// PolicyFor builds a Policy from the scanner's chain list.
func PolicyFor(ledgerDecimals int32, chains []chain.Chain, requireMint bool) Policy {
	p := Policy{
		LedgerDecimals:   ledgerDecimals,
		ChainDecimals:    map[int64]int32{},
		MinConfirmations: map[int64]uint64{},
		RequireMint:      requireMint,
	}
	for _, c := range chains {
		if c.Decimals != nil {
			p.ChainDecimals[c.ChainID] = *c.Decimals
		}
		if c.MinConfirmations > 0 {
			p.MinConfirmations[c.ChainID] = c.MinConfirmations
		}
	}
	return p
}

func (p Policy) decimalsFor(chainID int64) int32 {
	if d, ok := p.ChainDecimals[chainID]; ok {
		return d
	}
	return p.LedgerDecimals
}

type Credit struct {
	Amount     int64
	Provenance models.Provenance
	Transfer   models.VerifiedTransfer
}

type Verifier struct {
	wallets  WalletLookup
	resolver chain.Resolver
	heads    HeadReader
	policy   Policy
	log      *zap.Logger
}

// NewVerifier wires the verifier. heads may be nil when no chain requires
// confirmations.
func NewVerifier(wallets WalletLookup, resolver chain.Resolver, heads HeadReader, policy Policy, log *zap.Logger) *Verifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Verifier{wallets: wallets, resolver: resolver, heads: heads, policy: policy, log: log}
}

// VerifyAndPrepareCredit resolves txHash against the user's linked wallet
// and converts the transfer into ledger units. It has no side effects.
func (v *Verifier) VerifyAndPrepareCredit(ctx context.Context, userID, txHash string) (Credit, error) {
	hash, err := chain.NormalizeTxHash(txHash)
	if err != nil {
		return Credit{}, err
	}

	wallet, ok, err := v.wallets.LinkedWallet(ctx, userID)
	if err != nil {
		return Credit{}, fmt.Errorf("wallet lookup: %w", err)
	}
	if !ok || wallet == "" {
		v.outcome("wallet_not_linked")
		return Credit{}, apperr.New(apperr.KindWalletNotLinked, "link a wallet before claiming a mint")
	}

	vt, found, err := v.resolver.Resolve(ctx, hash, wallet)
	if err != nil {
		return Credit{}, err
	}
	if !found {
		v.outcome("not_found")
		return Credit{}, apperr.New(apperr.KindNotFound,
			"transaction not found on any supported chain, or it does not transfer tokens to your wallet")
	}

	if v.policy.RequireMint && common.HexToAddress(vt.From) != (common.Address{}) {
		v.outcome("not_mint")
		return Credit{}, apperr.New(apperr.KindInvalidTx, "transaction is a transfer, not a mint")
	}

	if err := v.checkConfirmations(ctx, vt); err != nil {
		v.outcome("unconfirmed")
		return Credit{}, err
	}

	amount, err := ConvertUnits(vt.Amount, v.policy.decimalsFor(vt.ChainID), v.policy.LedgerDecimals)
	if err != nil {
		v.outcome("bad_amount")
		return Credit{}, apperr.Wrap(apperr.KindInvalidTx, "transferred amount cannot be credited", err)
	}

	v.outcome("verified")
	v.log.Info("mint verified",
		zap.String("user_id", userID),
		zap.String("chain", vt.ChainName),
		zap.String("tx", vt.TxHash),
		zap.Int64("amount", amount))

	return Credit{Amount: amount, Provenance: vt.Provenance(), Transfer: vt}, nil
}

func (v *Verifier) checkConfirmations(ctx context.Context, vt models.VerifiedTransfer) error {
	need := v.policy.MinConfirmations[vt.ChainID]
	if need == 0 {
		return nil
	}
	if v.heads == nil {
		return apperr.New(apperr.KindNotFound, "transaction confirmations cannot be checked yet")
	}
	head, err := v.heads.HeadBlock(ctx, vt.ChainID)
	if err != nil {
		v.log.Warn("head block lookup failed", zap.String("chain", vt.ChainName), zap.Error(err))
		return apperr.Wrap(apperr.KindNotFound, "transaction confirmations cannot be checked yet", err)
	}
	var have uint64
	if head >= vt.BlockNumber {
		have = head - vt.BlockNumber + 1
	}
	if have < need {
		return apperr.Newf(apperr.KindNotFound,
			"transaction has %d of %d required confirmations, try again shortly", have, need)
	}
	return nil
}

func (v *Verifier) outcome(o string) {
	metrics.SettlementsTotal.WithLabelValues(o).Inc()
}
