package chain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/baharkarakas/tokenledger/internal/config"
)

// Dial opens an RPC client per configured chain, keeping config order.
// The returned func closes every client.
func Dial(ctx context.Context, cfgs []config.ChainConfig) ([]Chain, func(), error) {
	var clients []*ethclient.Client
	closeAll := func() {
		for _, c := range clients {
			c.Close()
		}
	}

	chains := make([]Chain, 0, len(cfgs))
	for _, cc := range cfgs {
		client, err := ethclient.DialContext(ctx, cc.RPCURL)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("dial chain %s: %w", cc.Name, err)
		}
		clients = append(clients, client)

		tokens := make([]common.Address, 0, len(cc.TokenAddresses))
		for _, t := range cc.TokenAddresses {
			if !common.IsHexAddress(t) {
				closeAll()
				return nil, func() {}, fmt.Errorf("chain %s: bad token address %q", cc.Name, t)
			}
			tokens = append(tokens, common.HexToAddress(t))
		}

		chains = append(chains, Chain{
			Name:             cc.Name,
			ChainID:          cc.ChainID,
			Client:           client,
			Timeout:          cc.Timeout,
			Tokens:           tokens,
			Decimals:         cc.Decimals,
			MinConfirmations: cc.MinConfirmations,
		})
	}
	return chains, closeAll, nil
}
