package evm

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CreateNonce returns 32 bytes from crypto/rand as 0x-prefixed hex
func CreateNonce() (string, error) {
	return createNonceFrom(rand.Read)
}

func createNonceFrom(read func([]byte) (int, error)) (string, error) {
	nonce := make([]byte, 32)
	if _, err := read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hexutil.Encode(nonce), nil
}

// HexToBytes decodes hex with or without the 0x prefix
func HexToBytes(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	return hexutil.Decode(s)
}

// BytesToHex encodes bytes as 0x-prefixed hex
func BytesToHex(b []byte) string {
	return hexutil.Encode(b)
}

// IsValidAddress reports whether s is a 20-byte hex address
func IsValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// NormalizeAddress returns the EIP-55 checksummed form of an address
func NormalizeAddress(s string) string {
	return common.HexToAddress(s).Hex()
}

// IsNativeAsset reports whether address is the zero address sentinel
func IsNativeAsset(address string) bool {
	return common.HexToAddress(address) == (common.Address{}) && IsValidAddress(address)
}
