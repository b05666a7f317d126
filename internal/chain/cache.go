package chain

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/baharkarakas/tokenledger/internal/models"
)

const cachePrefix = "tokenledger:transfer:"

// CachedResolver memoizes positive Resolve results in Redis. Misses are
// not cached since a transaction may be mined or indexed later. Redis
// failures fall back to the wrapped resolver.
type CachedResolver struct {
	next Resolver
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedResolver(next Resolver, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedResolver {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedResolver{next: next, rdb: rdb, ttl: ttl, log: log}
}

type cachedTransfer struct {
	ChainID     int64  `json:"chain_id"`
	ChainName   string `json:"chain"`
	Contract    string `json:"contract"`
	From        string `json:"from"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	LogIndex    uint   `json:"log_index"`
}

func cacheKey(txHash, recipient string) string {
	return cachePrefix + strings.ToLower(txHash) + ":" + strings.ToLower(recipient)
}

func encodeTransfer(vt models.VerifiedTransfer) (string, error) {
	amount := "0"
	if vt.Amount != nil {
		amount = vt.Amount.String()
	}
	b, err := json.Marshal(cachedTransfer{
		ChainID:     vt.ChainID,
		ChainName:   vt.ChainName,
		Contract:    vt.Contract,
		From:        vt.From,
		Recipient:   vt.Recipient,
		Amount:      amount,
		TxHash:      vt.TxHash,
		BlockNumber: vt.BlockNumber,
		LogIndex:    vt.LogIndex,
	})
	return string(b), err
}

func decodeTransfer(s string) (models.VerifiedTransfer, error) {
	var c cachedTransfer
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return models.VerifiedTransfer{}, err
	}
	amount, ok := new(big.Int).SetString(c.Amount, 10)
	if !ok {
		return models.VerifiedTransfer{}, errors.New("bad cached amount")
	}
	return models.VerifiedTransfer{
		ChainID:     c.ChainID,
		ChainName:   c.ChainName,
		Contract:    c.Contract,
		From:        c.From,
		Recipient:   c.Recipient,
		Amount:      amount,
		TxHash:      c.TxHash,
		BlockNumber: c.BlockNumber,
		LogIndex:    c.LogIndex,
	}, nil
}

func (r *CachedResolver) Resolve(ctx context.Context, txHash, recipient string) (models.VerifiedTransfer, bool, error) {
	if _, _, err := ValidateInput(txHash, recipient); err != nil {
		return models.VerifiedTransfer{}, false, err
	}
	key := cacheKey(txHash, recipient)

	raw, err := r.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		vt, derr := decodeTransfer(raw)
		if derr == nil {
			return vt, true, nil
		}
		r.log.Warn("dropping unreadable cache entry", zap.String("key", key), zap.Error(derr))
	case errors.Is(err, redis.Nil):
	default:
		r.log.Warn("transfer cache read failed", zap.Error(err))
	}

	vt, found, err := r.next.Resolve(ctx, txHash, recipient)
	if err != nil || !found {
		return vt, found, err
	}

	val, err := encodeTransfer(vt)
	if err == nil {
		err = r.rdb.Set(ctx, key, val, r.ttl).Err()
	}
	if err != nil {
		r.log.Warn("transfer cache write failed", zap.Error(err))
	}
	return vt, true, nil
}

// HeadBlock is delegated so the cache can stand in for a *Scanner.
func (r *CachedResolver) HeadBlock(ctx context.Context, chainID int64) (uint64, error) {
	if hb, ok := r.next.(interface {
		HeadBlock(context.Context, int64) (uint64, error)
	}); ok {
		return hb.HeadBlock(ctx, chainID)
	}
	return 0, errors.New("head block not supported")
}
