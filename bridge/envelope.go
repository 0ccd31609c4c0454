package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

// Envelope is the signed, wire-ready authorization sent in the X-PAYMENT header.
// It is tied to one nonce and window and must not be resent after a failure.
type Envelope struct {
	X402Version int                     `json:"x402Version"`
	Scheme      string                  `json:"scheme"`
	Network     x402.Network            `json:"network"`
	Payload     evm.SignedAuthorization `json:"payload"`
}

// Encode serializes the envelope as base64 JSON
func (e *Envelope) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeEnvelope parses an X-PAYMENT header value
func DecodeEnvelope(header string) (*Envelope, error) {
	data, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope JSON: %w", err)
	}
	return &env, nil
}

// DecodeHeader base64-decodes a header value
func DecodeHeader(header string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	return data, nil
}

// EncodeAck serializes a payment acknowledgment for the X-Payment-Response header
func EncodeAck(ack PaymentAck) (string, error) {
	data, err := json.Marshal(ack)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payment ack: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeAck parses an X-Payment-Response header value
func DecodeAck(header string) (*PaymentAck, error) {
	data, err := DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	var ack PaymentAck
	if err := json.Unmarshal(data, &ack); err != nil {
		return nil, fmt.Errorf("invalid payment ack JSON: %w", err)
	}
	return &ack, nil
}
