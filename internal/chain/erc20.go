package chain

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/baharkarakas/tokenledger/internal/apperr"
)

const erc20TransferABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true,  "name": "from",  "type": "address"},
		{"indexed": true,  "name": "to",    "type": "address"},
		{"indexed": false, "name": "value", "type": "uint256"}
	],
	"name": "Transfer",
	"type": "event"
}]`

var transferEvent abi.Event

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc20TransferABI))
	if err != nil {
		panic("chain: parse erc20 abi: " + err.Error())
	}
	transferEvent = parsed.Events["Transfer"]
}

// TransferTopic is keccak256("Transfer(address,address,uint256)").
func TransferTopic() common.Hash { return transferEvent.ID }

// Transfer is one decoded ERC-20 Transfer log.
type Transfer struct {
	Contract common.Address
	From     common.Address
	To       common.Address
	Value    *big.Int
	LogIndex uint
}

// DecodeTransfer decodes an ERC-20 Transfer log. ERC-721 transfers share the
// signature but index the token id as a fourth topic; they are rejected.
func DecodeTransfer(l *types.Log) (Transfer, bool) {
	if l == nil || len(l.Topics) != 3 || l.Topics[0] != transferEvent.ID {
		return Transfer{}, false
	}
	values, err := transferEvent.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil || len(values) != 1 {
		return Transfer{}, false
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return Transfer{}, false
	}
	return Transfer{
		Contract: l.Address,
		From:     common.BytesToAddress(l.Topics[1].Bytes()),
		To:       common.BytesToAddress(l.Topics[2].Bytes()),
		Value:    value,
		LogIndex: l.Index,
	}, true
}

var txHashRe = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// NormalizeTxHash validates a 32-byte 0x hex hash and lower-cases it.
func NormalizeTxHash(h string) (string, error) {
	h = strings.TrimSpace(h)
	if !txHashRe.MatchString(h) {
		return "", apperr.New(apperr.KindInvalidInput, "txHash must be a 0x-prefixed 32-byte hex string")
	}
	return strings.ToLower(h), nil
}

func ValidateAddress(a string) error {
	if !strings.HasPrefix(a, "0x") || !common.IsHexAddress(a) {
		return apperr.New(apperr.KindInvalidInput, "address must be a 0x-prefixed 20-byte hex string")
	}
	return nil
}

// ValidateInput checks Resolve's arguments.
func ValidateInput(txHash, recipient string) (common.Hash, common.Address, error) {
	h, err := NormalizeTxHash(txHash)
	if err != nil {
		return common.Hash{}, common.Address{}, err
	}
	if err := ValidateAddress(recipient); err != nil {
		return common.Hash{}, common.Address{}, err
	}
	return common.HexToHash(h), common.HexToAddress(recipient), nil
}
