package evm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestHashTransferAuthorization_SignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	payer := crypto.PubkeyToAddress(key.PublicKey).Hex()

	auth := TransferAuthorization{
		From:        payer,
		To:          "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Value:       "1000000",
		ValidAfter:  "1700000000",
		ValidBefore: "1700000060",
		Nonce:       "0x" + strings.Repeat("01", 32),
	}
	asset := "0x036CbD53842c5426634e7929541eC2318f3dCF7e"

	digest, err := HashTransferAuthorization(auth, ChainIDBaseSepolia, asset, "USDC", "2")
	if err != nil {
		t.Fatalf("Failed to hash: %v", err)
	}
	if len(digest) != 32 {
		t.Fatalf("Expected 32-byte digest, got %d", len(digest))
	}

	again, _ := HashTransferAuthorization(auth, ChainIDBaseSepolia, asset, "USDC", "2")
	if !bytes.Equal(digest, again) {
		t.Error("Expected hashing to be deterministic")
	}
	otherDomain, _ := HashTransferAuthorization(auth, ChainIDBase, asset, "USDC", "2")
	if bytes.Equal(digest, otherDomain) {
		t.Error("Expected chain ID to change the digest")
	}

	sig, err := crypto.Sign(digest, key)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	sig[64] += 27

	recovered, err := RecoverSigner(digest, sig)
	if err != nil {
		t.Fatalf("Failed to recover: %v", err)
	}
	if recovered != payer {
		t.Errorf("Expected %s, got %s", payer, recovered)
	}

	ok, err := VerifyTransferAuthorization(auth, sig, ChainIDBaseSepolia, asset, "USDC", "2")
	if err != nil || !ok {
		t.Errorf("Expected signature to verify, ok=%v err=%v", ok, err)
	}

	auth.Value = "2000000"
	ok, err = VerifyTransferAuthorization(auth, sig, ChainIDBaseSepolia, asset, "USDC", "2")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected tampered authorization to fail verification")
	}
}

func TestRecoverSigner_InvalidLength(t *testing.T) {
	if _, err := RecoverSigner(make([]byte, 32), make([]byte, 64)); err == nil {
		t.Error("Expected error for 64-byte signature")
	}
}

func TestHexHelpers(t *testing.T) {
	b, err := HexToBytes("abcd")
	if err != nil || !bytes.Equal(b, []byte{0xab, 0xcd}) {
		t.Errorf("Unexpected decode result %x, %v", b, err)
	}
	if BytesToHex([]byte{0x01, 0xff}) != "0x01ff" {
		t.Errorf("Unexpected encode result %s", BytesToHex([]byte{0x01, 0xff}))
	}
	if !IsValidAddress("0x209693Bc6afc0C5328bA36FaF03C514EF312287C") || IsValidAddress("merchant") {
		t.Error("Unexpected address validation result")
	}
	if !IsNativeAsset(NativeAssetAddress) || IsNativeAsset("0x0") {
		t.Error("Unexpected native asset detection")
	}
}
