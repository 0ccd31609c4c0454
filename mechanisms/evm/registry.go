package evm

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	x402 "github.com/x402-foundation/qrpay"
)

// ResolveNetwork returns the configuration for a network key
func ResolveNetwork(network x402.Network) (NetworkConfig, error) {
	config, ok := NetworkConfigs[string(network)]
	if !ok {
		return NetworkConfig{}, x402.NewPaymentError(x402.ErrCodeUnknownNetwork, fmt.Sprintf("unknown network: %s", network), map[string]interface{}{
			"network": string(network),
		})
	}
	return config, nil
}

// GetChainID returns the chain ID for a network key
func GetChainID(network x402.Network) (*big.Int, error) {
	config, err := ResolveNetwork(network)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(config.ChainID), nil
}

// ResolveToken looks up a token by symbol on a network. A symbol that exists
// elsewhere fails with token_unavailable_on_network, an unknown symbol with unknown_token.
func ResolveToken(symbol string, network x402.Network) (AssetInfo, error) {
	byNetwork, ok := Tokens[strings.ToUpper(symbol)]
	if !ok {
		return AssetInfo{}, x402.NewPaymentError(x402.ErrCodeUnknownToken, fmt.Sprintf("unknown token: %s", symbol), map[string]interface{}{
			"symbol": symbol,
		})
	}
	asset, ok := byNetwork[string(network)]
	if !ok {
		return AssetInfo{}, x402.NewPaymentError(x402.ErrCodeTokenUnavailableOnNetwork, fmt.Sprintf("token %s is not available on %s", symbol, network), map[string]interface{}{
			"symbol":  symbol,
			"network": string(network),
		})
	}
	return asset, nil
}

// ResolveTokenAddress returns only the contract address of ResolveToken
func ResolveTokenAddress(symbol string, network x402.Network) (string, error) {
	asset, err := ResolveToken(symbol, network)
	if err != nil {
		return "", err
	}
	return asset.Address, nil
}

// GetAssetInfo finds the registry entry for a contract address on a network.
// Unlisted contracts are returned with default USDC decimals and no symbol.
func GetAssetInfo(network x402.Network, address string) (AssetInfo, error) {
	if _, err := ResolveNetwork(network); err != nil {
		return AssetInfo{}, err
	}
	for _, byNetwork := range Tokens {
		asset, ok := byNetwork[string(network)]
		if ok && strings.EqualFold(asset.Address, address) {
			// DAI on base-sepolia shares the zero address with ETH
			if IsNativeAsset(address) && asset.Symbol != SymbolETH {
				continue
			}
			return asset, nil
		}
	}
	return AssetInfo{
		Address:  address,
		Decimals: DefaultDecimals,
	}, nil
}

// ExplorerTxURL returns the block explorer link for a transaction
func ExplorerTxURL(network x402.Network, txHash string) (string, error) {
	config, err := ResolveNetwork(network)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/tx/%s", config.ExplorerURL, txHash), nil
}

// Networks returns the registered network keys in sorted order
func Networks() []string {
	keys := make([]string, 0, len(NetworkConfigs))
	for k := range NetworkConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListTokens returns every registry row ordered by symbol then network
func ListTokens() []Token {
	var tokens []Token
	for symbol, byNetwork := range Tokens {
		for network, asset := range byNetwork {
			tokens = append(tokens, Token{Symbol: symbol, Network: network, Asset: asset})
		}
	}
	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Symbol != tokens[j].Symbol {
			return tokens[i].Symbol < tokens[j].Symbol
		}
		return tokens[i].Network < tokens[j].Network
	})
	return tokens
}
