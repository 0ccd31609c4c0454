package evm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	x402 "github.com/x402-foundation/qrpay"
)

// AuthorizationBuilder mints time-windowed, nonce-bearing transfer authorizations.
// Every Build call produces a fresh nonce and window.
type AuthorizationBuilder struct {
	now       func() time.Time
	readNonce func([]byte) (int, error)
}

// BuilderOption configures an AuthorizationBuilder
type BuilderOption func(*AuthorizationBuilder)

// WithClock overrides the wall clock used for the validity window
func WithClock(now func() time.Time) BuilderOption {
	return func(b *AuthorizationBuilder) {
		b.now = now
	}
}

// WithRandomSource overrides the nonce entropy source
func WithRandomSource(read func([]byte) (int, error)) BuilderOption {
	return func(b *AuthorizationBuilder) {
		b.readNonce = read
	}
}

// NewAuthorizationBuilder creates a builder backed by time.Now and crypto/rand
func NewAuthorizationBuilder(opts ...BuilderOption) *AuthorizationBuilder {
	b := &AuthorizationBuilder{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type buildOptions struct {
	amount string
}

// BuildOption adjusts a single Build call
type BuildOption func(*buildOptions)

// WithAmount authorizes less than the obligation maximum
func WithAmount(amount string) BuildOption {
	return func(o *buildOptions) {
		o.amount = amount
	}
}

// Build creates an authorization from payer to obligation.PayTo valid for
// timeoutSeconds from now.
func (b *AuthorizationBuilder) Build(
	obligation x402.Obligation,
	payer string,
	timeoutSeconds int64,
	opts ...BuildOption,
) (TransferAuthorization, error) {
	options := buildOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	if timeoutSeconds <= 0 {
		return TransferAuthorization{}, x402.NewPaymentError(x402.ErrCodeInvalidTimeout, fmt.Sprintf("timeout must be positive, got %d", timeoutSeconds), nil)
	}

	maxAmount, ok := x402.ParseAtomicAmount(obligation.MaxAmountRequired)
	if !ok {
		return TransferAuthorization{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload, fmt.Sprintf("invalid maxAmountRequired: %s", obligation.MaxAmountRequired), nil)
	}

	value := maxAmount
	if options.amount != "" {
		override, ok := x402.ParseAtomicAmount(options.amount)
		if !ok {
			return TransferAuthorization{}, x402.NewPaymentError(x402.ErrCodeInvalidPayload, fmt.Sprintf("invalid amount: %s", options.amount), nil)
		}
		if override.Cmp(maxAmount) > 0 {
			return TransferAuthorization{}, x402.NewPaymentError(x402.ErrCodeAmountExceedsMaximum,
				fmt.Sprintf("amount %s exceeds maximum %s", override, maxAmount),
				map[string]interface{}{"amount": override.String(), "maximum": maxAmount.String()})
		}
		value = override
	}

	validAfter := b.now().Unix()
	if timeoutSeconds > math.MaxInt64-validAfter {
		return TransferAuthorization{}, x402.NewPaymentError(x402.ErrCodeInvalidTimeout, fmt.Sprintf("timeout %d overflows the validity window", timeoutSeconds), nil)
	}
	validBefore := validAfter + timeoutSeconds

	var nonce string
	var err error
	if b.readNonce != nil {
		nonce, err = createNonceFrom(b.readNonce)
	} else {
		nonce, err = CreateNonce()
	}
	if err != nil {
		return TransferAuthorization{}, err
	}

	return TransferAuthorization{
		From:        payer,
		To:          obligation.PayTo,
		Value:       value.String(),
		ValidAfter:  strconv.FormatInt(validAfter, 10),
		ValidBefore: strconv.FormatInt(validBefore, 10),
		Nonce:       nonce,
	}, nil
}

// ToTypedData builds the EIP-712 document for an authorization. No signing happens here.
func ToTypedData(
	authorization TransferAuthorization,
	assetAddress string,
	chainID *big.Int,
	tokenName string,
	tokenVersion string,
) (TypedData, error) {
	value, ok := new(big.Int).SetString(authorization.Value, 10)
	if !ok {
		return TypedData{}, fmt.Errorf("invalid authorization value: %s", authorization.Value)
	}
	validAfter, ok := new(big.Int).SetString(authorization.ValidAfter, 10)
	if !ok {
		return TypedData{}, fmt.Errorf("invalid validAfter: %s", authorization.ValidAfter)
	}
	validBefore, ok := new(big.Int).SetString(authorization.ValidBefore, 10)
	if !ok {
		return TypedData{}, fmt.Errorf("invalid validBefore: %s", authorization.ValidBefore)
	}
	nonceBytes, err := HexToBytes(authorization.Nonce)
	if err != nil {
		return TypedData{}, fmt.Errorf("invalid nonce: %w", err)
	}
	if len(nonceBytes) != 32 {
		return TypedData{}, fmt.Errorf("invalid nonce length: %d", len(nonceBytes))
	}

	return TypedData{
		Domain: TypedDataDomain{
			Name:              tokenName,
			Version:           tokenVersion,
			ChainID:           new(big.Int).Set(chainID),
			VerifyingContract: common.HexToAddress(assetAddress).Hex(),
		},
		Types: map[string][]TypedDataField{
			"EIP712Domain":                       EIP712DomainFields,
			PrimaryTypeTransferWithAuthorization: TransferWithAuthorizationFields,
		},
		PrimaryType: PrimaryTypeTransferWithAuthorization,
		Message: map[string]interface{}{
			"from":        common.HexToAddress(authorization.From).Hex(),
			"to":          common.HexToAddress(authorization.To).Hex(),
			"value":       value,
			"validAfter":  validAfter,
			"validBefore": validBefore,
			"nonce":       nonceBytes,
		},
	}, nil
}
