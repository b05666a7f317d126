package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeRPC serves receipts from a map; hang makes every call block until
// the context ends.
type fakeRPC struct {
	receipts map[common.Hash]*types.Receipt
	err      error
	delay    time.Duration
	hang     bool
	head     uint64
	calls    atomic.Int32
}

func (f *fakeRPC) TransactionReceipt(ctx context.Context, h common.Hash) (*types.Receipt, error) {
	f.calls.Add(1)
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.receipts[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeRPC) BlockNumber(ctx context.Context) (uint64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.head, nil
}

var errProvider = errors.New("401 unauthorized: bad api key")

var (
	tokenA    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenB    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	alice     = common.HexToAddress("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	bob       = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	zeroAddr  = common.Address{}
	hashOnC   = common.HexToHash("0x" + "cc" + "00000000000000000000000000000000000000000000000000000000000001")
	hashOnA   = common.HexToHash("0xaa00000000000000000000000000000000000000000000000000000000000002")
	hashNoHit = common.HexToHash("0xdd00000000000000000000000000000000000000000000000000000000000003")
)

func transferLog(token, from, to common.Address, value int64, index uint) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			TransferTopic(),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:  common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
		Index: index,
	}
}

func receipt(block int64, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(block),
		Logs:        logs,
	}
}
