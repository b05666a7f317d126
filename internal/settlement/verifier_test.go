package settlement

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/chain"
	"github.com/baharkarakas/tokenledger/internal/models"
)

type mockWallets struct{ mock.Mock }

func (m *mockWallets) LinkedWallet(ctx context.Context, userID string) (string, bool, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Bool(1), args.Error(2)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) Resolve(ctx context.Context, txHash, recipient string) (models.VerifiedTransfer, bool, error) {
	args := m.Called(ctx, txHash, recipient)
	return args.Get(0).(models.VerifiedTransfer), args.Bool(1), args.Error(2)
}

type mockHeads struct{ mock.Mock }

func (m *mockHeads) HeadBlock(ctx context.Context, chainID int64) (uint64, error) {
	args := m.Called(ctx, chainID)
	return args.Get(0).(uint64), args.Error(1)
}

const (
	userID = "user-1"
	wallet = "0x00000000000000000000000000000000000000a1"
	txHash = "0xAA00000000000000000000000000000000000000000000000000000000000001"
	txLow  = "0xaa00000000000000000000000000000000000000000000000000000000000001"
	token  = "0x1111111111111111111111111111111111111111"
)

func transfer(amount int64, from string) models.VerifiedTransfer {
	return models.VerifiedTransfer{
		ChainID:     8453,
		ChainName:   "base",
		Contract:    token,
		From:        from,
		Recipient:   wallet,
		Amount:      big.NewInt(amount),
		TxHash:      txLow,
		BlockNumber: 100,
	}
}

func TestVerifyAndPrepareCredit(t *testing.T) {
	ctx := context.Background()
	zero := "0x0000000000000000000000000000000000000000"

	t.Run("credits converted amount with provenance", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return(wallet, true, nil)
		r.On("Resolve", ctx, txLow, wallet).Return(transfer(250_000, zero), true, nil)

		policy := Policy{LedgerDecimals: 2, ChainDecimals: map[int64]int32{8453: 6}}
		v := NewVerifier(w, r, nil, policy, nil)

		c, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		require.NoError(t, err)
		assert.Equal(t, int64(25), c.Amount)
		assert.Equal(t, int64(8453), c.Provenance.ChainID)
		assert.Equal(t, token, c.Provenance.Contract)
		assert.Equal(t, txLow, c.Provenance.TxHash)
		assert.Equal(t, "250000", c.Provenance.RawAmount)
		w.AssertExpectations(t)
		r.AssertExpectations(t)
	})

	t.Run("wallet not linked", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return("", false, nil)
		v := NewVerifier(w, r, nil, Policy{}, nil)

		_, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		assert.ErrorIs(t, err, apperr.ErrWalletNotLinked)
		r.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed hash fails before lookup", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		v := NewVerifier(w, r, nil, Policy{}, nil)
		_, err := v.VerifyAndPrepareCredit(ctx, userID, "0x1234")
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
		w.AssertNotCalled(t, "LinkedWallet", mock.Anything, mock.Anything)
	})

	t.Run("not found on any chain", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return(wallet, true, nil)
		r.On("Resolve", ctx, txLow, wallet).Return(models.VerifiedTransfer{}, false, nil)
		v := NewVerifier(w, r, nil, Policy{}, nil)

		_, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("wallet store error is internal", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return("", false, errors.New("db down"))
		v := NewVerifier(w, r, nil, Policy{}, nil)

		_, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		require.Error(t, err)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	})

	t.Run("require mint rejects plain transfer", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return(wallet, true, nil)
		r.On("Resolve", ctx, txLow, wallet).Return(transfer(10, "0x00000000000000000000000000000000000000b0"), true, nil)
		v := NewVerifier(w, r, nil, Policy{RequireMint: true}, nil)

		_, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		assert.ErrorIs(t, err, apperr.ErrInvalidTx)
	})

	t.Run("dust amount is invalid tx", func(t *testing.T) {
		w, r := &mockWallets{}, &mockResolver{}
		w.On("LinkedWallet", ctx, userID).Return(wallet, true, nil)
		r.On("Resolve", ctx, txLow, wallet).Return(transfer(5, zero), true, nil)
		v := NewVerifier(w, r, nil, Policy{LedgerDecimals: 0, ChainDecimals: map[int64]int32{8453: 6}}, nil)

		_, err := v.VerifyAndPrepareCredit(ctx, userID, txHash)
		assert.ErrorIs(t, err, apperr.ErrInvalidTx)
	})
}

func TestVerifyConfirmations(t *testing.T) {
	ctx := context.Background()
	policy := Policy{MinConfirmations: map[int64]uint64{8453: 5}}

	setup := func(head uint64, headErr error) *Verifier {
		w, r, h := &mockWallets{}, &mockResolver{}, &mockHeads{}
		w.On("LinkedWallet", ctx, userID).Return(wallet, true, nil)
		r.On("Resolve", ctx, txLow, wallet).Return(transfer(7, wallet), true, nil)
		h.On("HeadBlock", ctx, int64(8453)).Return(head, headErr)
		return NewVerifier(w, r, h, policy, nil)
	}

	_, err := setup(102, nil).VerifyAndPrepareCredit(ctx, userID, txHash)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, apperr.MessageOf(err), "3 of 5")

	c, err := setup(104, nil).VerifyAndPrepareCredit(ctx, userID, txHash)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Amount)

	_, err = setup(0, errors.New("rpc down")).VerifyAndPrepareCredit(ctx, userID, txHash)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPolicyForDecimals(t *testing.T) {
	zero, six := int32(0), int32(6)
	p := PolicyFor(2, []chain.Chain{
		{ChainID: 1, Decimals: &six, MinConfirmations: 3},
		{ChainID: 100, Decimals: &zero},
		{ChainID: 137},
	}, false)

	assert.Equal(t, int32(6), p.decimalsFor(1))
	assert.Equal(t, int32(0), p.decimalsFor(100), "explicit zero is kept")
	assert.Equal(t, int32(2), p.decimalsFor(137))
	assert.Equal(t, map[int64]uint64{1: 3}, p.MinConfirmations)

	// 7 whole points on a 0-decimal token become 700 ledger units
	amount, err := ConvertUnits(big.NewInt(7), p.decimalsFor(100), p.LedgerDecimals)
	require.NoError(t, err)
	assert.Equal(t, int64(700), amount)
}
