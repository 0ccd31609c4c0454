package evm

import (
	"math/big"
)

const (
	// Scheme identifier
	SchemeExact = "exact"

	// Default token decimals for USDC
	DefaultDecimals = 6

	// Decimals of native ETH and DAI
	NativeDecimals = 18

	// Default EIP-712 domain for USDC when an obligation does not name one
	DefaultTokenName    = "USD Coin"
	DefaultTokenVersion = "2"

	// NativeAssetAddress is the zero address sentinel meaning "native asset"
	NativeAssetAddress = "0x0000000000000000000000000000000000000000"

	// Primary type of an EIP-3009 authorization
	PrimaryTypeTransferWithAuthorization = "TransferWithAuthorization"

	// Token symbols
	SymbolUSDC = "USDC"
	SymbolDAI  = "DAI"
	SymbolETH  = "ETH"
)

var (
	// Network chain IDs
	ChainIDEthereum    = big.NewInt(1)
	ChainIDOptimism    = big.NewInt(10)
	ChainIDBase        = big.NewInt(8453)
	ChainIDArbitrum    = big.NewInt(42161)
	ChainIDBaseSepolia = big.NewInt(84532)

	// NetworkConfigs is keyed by the network string carried in payment requests
	NetworkConfigs = map[string]NetworkConfig{
		"base": {
			Name:        "Base",
			ChainID:     ChainIDBase,
			RPCURL:      "https://mainnet.base.org",
			ExplorerURL: "https://basescan.org",
			DefaultAsset: AssetInfo{
				Address:  "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
				Symbol:   SymbolUSDC,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"base-sepolia": {
			Name:        "Base Sepolia",
			ChainID:     ChainIDBaseSepolia,
			RPCURL:      "https://sepolia.base.org",
			ExplorerURL: "https://sepolia.basescan.org",
			Testnet:     true,
			DefaultAsset: AssetInfo{
				Address:  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				Symbol:   SymbolUSDC,
				Name:     "USDC",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"ethereum": {
			Name:        "Ethereum",
			ChainID:     ChainIDEthereum,
			RPCURL:      "https://eth.llamarpc.com",
			ExplorerURL: "https://etherscan.io",
			DefaultAsset: AssetInfo{
				Address:  "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
				Symbol:   SymbolUSDC,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"optimism": {
			Name:        "Optimism",
			ChainID:     ChainIDOptimism,
			RPCURL:      "https://mainnet.optimism.io",
			ExplorerURL: "https://optimistic.etherscan.io",
			DefaultAsset: AssetInfo{
				Address:  "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85",
				Symbol:   SymbolUSDC,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
		"arbitrum": {
			Name:        "Arbitrum One",
			ChainID:     ChainIDArbitrum,
			RPCURL:      "https://arb1.arbitrum.io/rpc",
			ExplorerURL: "https://arbiscan.io",
			DefaultAsset: AssetInfo{
				Address:  "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
				Symbol:   SymbolUSDC,
				Name:     "USD Coin",
				Version:  "2",
				Decimals: DefaultDecimals,
			},
		},
	}

	// Tokens maps symbol -> network -> asset. A missing network entry means the
	// token is not deployed there.
	Tokens = map[string]map[string]AssetInfo{
		SymbolUSDC: {
			"base":         NetworkConfigs["base"].DefaultAsset,
			"base-sepolia": NetworkConfigs["base-sepolia"].DefaultAsset,
			"ethereum":     NetworkConfigs["ethereum"].DefaultAsset,
			"optimism":     NetworkConfigs["optimism"].DefaultAsset,
			"arbitrum":     NetworkConfigs["arbitrum"].DefaultAsset,
		},
		SymbolDAI: {
			"base":         daiAsset("0x50c5725949A6F0c72E6C4a641F24049A917DB0Cb"),
			"base-sepolia": daiAsset(NativeAssetAddress),
			"ethereum":     daiAsset("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
			"optimism":     daiAsset("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"),
			"arbitrum":     daiAsset("0xDA10009cBd5D07dd0CeCc66161FC93D7c9000da1"),
		},
		SymbolETH: {
			"base":         ethAsset(),
			"base-sepolia": ethAsset(),
			"ethereum":     ethAsset(),
			"optimism":     ethAsset(),
			"arbitrum":     ethAsset(),
		},
	}

	// ERC-20 balanceOf, used to check the payer's funds before paying
	ERC20BalanceOfABI = []byte(`[
		{
			"inputs": [{"name": "account", "type": "address"}],
			"name": "balanceOf",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)
)

func daiAsset(address string) AssetInfo {
	return AssetInfo{
		Address:  address,
		Symbol:   SymbolDAI,
		Name:     "Dai Stablecoin",
		Version:  "1",
		Decimals: NativeDecimals,
	}
}

func ethAsset() AssetInfo {
	return AssetInfo{
		Address:  NativeAssetAddress,
		Symbol:   SymbolETH,
		Name:     "Ether",
		Decimals: NativeDecimals,
	}
}
