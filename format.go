package x402

import (
	"github.com/shopspring/decimal"
)

// FormatAddress shortens an address to 0x1234...abcd. chars defaults to 4.
func FormatAddress(address string, chars int) string {
	if chars <= 0 {
		chars = 4
	}
	if len(address) <= 2+2*chars {
		return address
	}
	return address[:chars+2] + "..." + address[len(address)-chars:]
}

// FormatAmount renders an atomic amount in display units, trimming trailing zeros.
// Unparseable input is returned as-is.
func FormatAmount(atomic string, decimals int32) string {
	d, err := decimal.NewFromString(atomic)
	if err != nil {
		return atomic
	}
	return d.Shift(-decimals).String()
}

// ToAtomicAmount converts a display amount into smallest units, truncating extra precision
func ToAtomicAmount(display string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(display)
	if err != nil {
		return "", NewPaymentError(ErrCodeInvalidPayload, "invalid amount: "+display, nil)
	}
	return d.Shift(decimals).Truncate(0).String(), nil
}
