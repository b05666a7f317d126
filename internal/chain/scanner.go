package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/metrics"
	"github.com/baharkarakas/tokenledger/internal/models"
)

// ReceiptFetcher is the read-only slice of an RPC client the scanner needs.
// *ethclient.Client satisfies it.
type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Chain is one scan target. Tokens, when non-empty, restricts matches to
// logs emitted by those contracts.
type Chain struct {
	Name             string
	ChainID          int64
	Client           ReceiptFetcher
	Timeout          time.Duration
	Tokens           []common.Address
	Decimals         *int32 // nil: ledger scale
	MinConfirmations uint64
}

func (c Chain) acceptsContract(addr common.Address) bool {
	if len(c.Tokens) == 0 {
		return true
	}
	for _, t := range c.Tokens {
		if t == addr {
			return true
		}
	}
	return false
}

type Mode string

const (
	Sequential Mode = "sequential"
	Concurrent Mode = "concurrent"
)

// Resolver finds a Transfer to recipient inside the transaction txHash.
// A transaction that is missing or has no matching log is reported with
// found=false and a nil error.
type Resolver interface {
	Resolve(ctx context.Context, txHash, recipient string) (models.VerifiedTransfer, bool, error)
}

type Scanner struct {
	chains []Chain
	mode   Mode
	log    *zap.Logger
}

type Option func(*Scanner)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMode(m Mode) Option {
	return func(s *Scanner) {
		if m == Concurrent {
			s.mode = Concurrent
		} else {
			s.mode = Sequential
		}
	}
}

const defaultTimeout = 5 * time.Second

func NewScanner(chains []Chain, opts ...Option) *Scanner {
	s := &Scanner{
		chains: append([]Chain(nil), chains...),
		mode:   Sequential,
		log:    zap.NewNop(),
	}
	for i := range s.chains {
		if s.chains[i].Timeout <= 0 {
			s.chains[i].Timeout = defaultTimeout
		}
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scanner) Chains() []Chain { return append([]Chain(nil), s.chains...) }

func (s *Scanner) Resolve(ctx context.Context, txHash, recipient string) (models.VerifiedTransfer, bool, error) {
	hash, to, err := ValidateInput(txHash, recipient)
	if err != nil {
		return models.VerifiedTransfer{}, false, err
	}
	if s.mode == Concurrent {
		return s.resolveConcurrent(ctx, hash, to)
	}
	return s.resolveSequential(ctx, hash, to)
}

func (s *Scanner) resolveSequential(ctx context.Context, hash common.Hash, to common.Address) (models.VerifiedTransfer, bool, error) {
	for _, c := range s.chains {
		if err := ctx.Err(); err != nil {
			return models.VerifiedTransfer{}, false, err
		}
		vt, ok := s.scanChain(ctx, c, hash, to)
		if ok {
			return vt, true, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return models.VerifiedTransfer{}, false, err
	}
	return models.VerifiedTransfer{}, false, nil
}

type chainOutcome struct {
	idx   int
	vt    models.VerifiedTransfer
	found bool
}

// resolveConcurrent queries every chain at once but keeps the sequential
// answer: a match on chain i is returned only after chains 0..i-1 missed.
func (s *Scanner) resolveConcurrent(ctx context.Context, hash common.Hash, to common.Address) (models.VerifiedTransfer, bool, error) {
	if len(s.chains) == 0 {
		return models.VerifiedTransfer{}, false, ctx.Err()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan chainOutcome, len(s.chains))
	for i, c := range s.chains {
		go func(i int, c Chain) {
			vt, ok := s.scanChain(ctx, c, hash, to)
			outcomes <- chainOutcome{idx: i, vt: vt, found: ok}
		}(i, c)
	}

	done := make([]*chainOutcome, len(s.chains))
	next := 0
	for next < len(s.chains) {
		select {
		case <-ctx.Done():
			return models.VerifiedTransfer{}, false, ctx.Err()
		case o := <-outcomes:
			done[o.idx] = &o
		}
		for next < len(s.chains) && done[next] != nil {
			if done[next].found {
				return done[next].vt, true, nil
			}
			next++
		}
	}
	return models.VerifiedTransfer{}, false, nil
}

// scanChain never returns an error: provider failures are logged and
// treated as a miss.
func (s *Scanner) scanChain(ctx context.Context, c Chain, hash common.Hash, to common.Address) (models.VerifiedTransfer, bool) {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	receipt, err := c.Client.TransactionReceipt(cctx, hash)
	outcome := "miss"
	defer func() {
		metrics.ChainLookupSeconds.WithLabelValues(c.Name, outcome).Observe(time.Since(start).Seconds())
	}()

	switch {
	case errors.Is(err, ethereum.NotFound):
		s.log.Debug("receipt not found", zap.String("chain", c.Name), zap.String("tx", hash.Hex()))
		return models.VerifiedTransfer{}, false
	case err != nil:
		outcome = "error"
		if ctx.Err() == nil {
			s.log.Warn("receipt lookup failed",
				zap.String("chain", c.Name),
				zap.String("tx", hash.Hex()),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err))
		}
		return models.VerifiedTransfer{}, false
	case receipt == nil:
		return models.VerifiedTransfer{}, false
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		s.log.Info("receipt reverted", zap.String("chain", c.Name), zap.String("tx", hash.Hex()))
		return models.VerifiedTransfer{}, false
	}

	tr, ok := MatchTransfer(receipt, c, to)
	if !ok {
		s.log.Info("no matching transfer in receipt",
			zap.String("chain", c.Name),
			zap.String("tx", hash.Hex()),
			zap.Int("logs", len(receipt.Logs)))
		return models.VerifiedTransfer{}, false
	}
	outcome = "found"

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}
	return models.VerifiedTransfer{
		ChainID:     c.ChainID,
		ChainName:   c.Name,
		Contract:    tr.Contract.Hex(),
		From:        tr.From.Hex(),
		Recipient:   tr.To.Hex(),
		Amount:      tr.Value,
		TxHash:      strings.ToLower(hash.Hex()),
		BlockNumber: block,
		LogIndex:    tr.LogIndex,
	}, true
}

// MatchTransfer returns the first Transfer log in r whose recipient is to.
// Address equality is on the 20 bytes, so checksum casing does not matter.
func MatchTransfer(r *types.Receipt, c Chain, to common.Address) (Transfer, bool) {
	for _, l := range r.Logs {
		tr, ok := DecodeTransfer(l)
		if !ok || !c.acceptsContract(tr.Contract) {
			continue
		}
		if tr.To == to {
			return tr, true
		}
	}
	return Transfer{}, false
}

// HeadBlock returns the latest block number of the chain with chainID.
func (s *Scanner) HeadBlock(ctx context.Context, chainID int64) (uint64, error) {
	for _, c := range s.chains {
		if c.ChainID != chainID {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, c.Timeout)
		defer cancel()
		return c.Client.BlockNumber(cctx)
	}
	return 0, fmt.Errorf("chain %d is not configured", chainID)
}

// ChainByID returns the configured chain with chainID.
func (s *Scanner) ChainByID(chainID int64) (Chain, bool) {
	for _, c := range s.chains {
		if c.ChainID == chainID {
			return c, true
		}
	}
	return Chain{}, false
}
