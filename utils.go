package x402

import (
	"fmt"
	"math/big"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("atomic", validateAtomicAmount)
}

// validateAtomicAmount accepts non-negative base-10 integers of any size
func validateAtomicAmount(fl validator.FieldLevel) bool {
	_, ok := ParseAtomicAmount(fl.Field().String())
	return ok
}

// ParseAtomicAmount parses a non-negative integer amount in smallest units
func ParseAtomicAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil, false
		}
	}
	return new(big.Int).SetString(s, 10)
}

// ValidateObligation checks an obligation received from a settlement endpoint
func ValidateObligation(o Obligation) error {
	if err := validate.Struct(&o); err != nil {
		return NewPaymentError(ErrCodeUnexpectedResponse, fmt.Sprintf("invalid obligation: %v", err), nil)
	}
	return nil
}
