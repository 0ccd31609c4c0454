package payment

import (
	"context"
	"errors"
	"sync"

	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

// WalletInitializer produces the payer's signer on first use
type WalletInitializer func(ctx context.Context) (evm.ClientEvmSigner, error)

// Session is one payer's wallet identity. Pass it to every attempt for that
// payer; at most one attempt runs per session at a time.
type Session struct {
	// Signer is used directly when set
	Signer evm.ClientEvmSigner
	// Wallet is called once to create Signer when Signer is nil
	Wallet WalletInitializer

	mu sync.Mutex
}

// NewSession creates a session around a ready signer
func NewSession(signer evm.ClientEvmSigner) *Session {
	return &Session{Signer: signer}
}

// NewLazySession creates a session whose signer is created on first payment
func NewLazySession(wallet WalletInitializer) *Session {
	return &Session{Wallet: wallet}
}

// hasPayer reports whether the session can produce a payer address
func (s *Session) hasPayer() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Signer != nil || s.Wallet != nil
}

func (s *Session) signer() evm.ClientEvmSigner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Signer
}

// initWallet runs the initializer and caches the signer
func (s *Session) initWallet(ctx context.Context) (evm.ClientEvmSigner, error) {
	s.mu.Lock()
	wallet := s.Wallet
	s.mu.Unlock()

	if wallet == nil {
		return nil, errors.New("wallet not available")
	}
	signer, err := wallet(ctx)
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, errors.New("wallet initializer returned no signer")
	}

	s.mu.Lock()
	s.Signer = signer
	s.mu.Unlock()
	return signer, nil
}
