package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to rpcURL (http, ws or ipc) and checks that the node serves
// the expected chain. A zero expectedChainID skips the check.
func Dial(ctx context.Context, rpcURL string, expectedChainID int64) (*ethclient.Client, *big.Int, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if expectedChainID != 0 && chainID.Cmp(big.NewInt(expectedChainID)) != 0 {
		client.Close()
		return nil, nil, fmt.Errorf("chain: node reports chain id %s, config expects %d", chainID, expectedChainID)
	}
	return client, chainID, nil
}
