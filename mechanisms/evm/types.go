package evm

import (
	"context"
	"math/big"
)

// TransferAuthorization is the EIP-3009 TransferWithAuthorization message.
// Numeric fields are base-10 strings and the nonce is 0x-prefixed hex.
type TransferAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// SignedAuthorization pairs an authorization with its signature
type SignedAuthorization struct {
	Signature     string                `json:"signature"`
	Authorization TransferAuthorization `json:"authorization"`
}

// ClientEvmSigner defines the interface for client-side EVM signing operations
type ClientEvmSigner interface {
	// Address returns the signer's Ethereum address
	Address() string

	// SignTypedData signs EIP-712 typed data
	SignTypedData(ctx context.Context, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error)
}

// TypedDataDomain represents the EIP-712 domain separator
type TypedDataDomain struct {
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	ChainID           *big.Int `json:"chainId"`
	VerifyingContract string   `json:"verifyingContract"`
}

// TypedDataField represents a field in EIP-712 typed data
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is a complete EIP-712 document ready to hand to a signer
type TypedData struct {
	Domain      TypedDataDomain             `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Message     map[string]interface{}      `json:"message"`
}

// AssetInfo contains information about a token on one network
type AssetInfo struct {
	Address  string
	Symbol   string
	Name     string
	Version  string
	Decimals int
}

// IsNative reports whether the asset is the zero address sentinel
func (a AssetInfo) IsNative() bool {
	return IsNativeAsset(a.Address)
}

// NetworkConfig describes a supported network
type NetworkConfig struct {
	Name         string
	ChainID      *big.Int
	RPCURL       string
	ExplorerURL  string
	Testnet      bool
	DefaultAsset AssetInfo
}

// Token is one row of the token registry
type Token struct {
	Symbol  string
	Network string
	Asset   AssetInfo
}
