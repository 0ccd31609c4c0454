package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	x402 "github.com/x402-foundation/qrpay"
)

// ChainReader is the subset of *ethclient.Client needed to read balances
type ChainReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// BalanceReader reads native and ERC-20 balances at the latest block
type BalanceReader struct {
	chain ChainReader
	erc20 abi.ABI
}

// NewBalanceReader wraps a chain reader
func NewBalanceReader(chain ChainReader) (*BalanceReader, error) {
	parsed, err := abi.JSON(strings.NewReader(string(ERC20BalanceOfABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return &BalanceReader{chain: chain, erc20: parsed}, nil
}

// DialBalanceReader connects to the registry RPC endpoint of network
func DialBalanceReader(ctx context.Context, network x402.Network) (*BalanceReader, error) {
	config, err := ResolveNetwork(network)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, config.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", config.RPCURL, err)
	}
	reader, err := NewBalanceReader(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return reader, nil
}

// Close releases the underlying chain connection when it has one
func (r *BalanceReader) Close() {
	if closer, ok := r.chain.(interface{ Close() }); ok {
		closer.Close()
	}
}

// BalanceOf returns owner's balance of asset. The zero address reads the native balance.
func (r *BalanceReader) BalanceOf(ctx context.Context, asset string, owner string) (*big.Int, error) {
	account := common.HexToAddress(owner)
	if IsNativeAsset(asset) {
		balance, err := r.chain.BalanceAt(ctx, account, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read native balance: %w", err)
		}
		return balance, nil
	}

	data, err := r.erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack method call: %w", err)
	}

	token := common.HexToAddress(asset)
	result, err := r.chain.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}

	outputs, err := r.erc20.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack result: %w", err)
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected balanceOf output count: %d", len(outputs))
	}
	balance, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output type %T", outputs[0])
	}
	return balance, nil
}
