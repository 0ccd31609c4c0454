package x402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// URIScheme is the prefix of an encoded payment request
const URIScheme = "x402://"

// EncodePaymentRequest serializes a request into an x402:// URI using standard base64
func EncodePaymentRequest(req PaymentRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", NewPaymentError(ErrCodeInvalidPayload, fmt.Sprintf("failed to marshal payment request: %v", err), nil)
	}
	return URIScheme + base64.StdEncoding.EncodeToString(data), nil
}

// DecodePaymentRequest parses an x402:// URI. Only the four mandatory fields are
// checked; address shape and amount parsing are left to consumers.
func DecodePaymentRequest(uri string) (*PaymentRequest, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(uri), URIScheme)
	if !ok {
		return nil, NewPaymentError(ErrCodeMalformedURI, "payment request must start with "+URIScheme, nil)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, WrapPaymentError(ErrCodeInvalidEncoding, fmt.Sprintf("invalid base64 encoding: %v", err), err)
	}
	if !utf8.Valid(data) {
		return nil, NewPaymentError(ErrCodeInvalidEncoding, "payload is not valid UTF-8", nil)
	}

	var req PaymentRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, WrapPaymentError(ErrCodeInvalidPayload, fmt.Sprintf("invalid payment request JSON: %v", err), err)
	}

	if err := checkMandatoryFields(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func checkMandatoryFields(req *PaymentRequest) error {
	required := []struct {
		name  string
		value string
	}{
		{"maxAmountRequired", req.MaxAmountRequired},
		{"payTo", req.PayTo},
		{"asset", req.Asset},
		{"network", string(req.Network)},
	}
	for _, field := range required {
		if field.value == "" {
			return NewMissingFieldError(field.name)
		}
	}
	return nil
}
