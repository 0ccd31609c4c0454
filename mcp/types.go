package mcp

import (
	"encoding/json"

	x402 "github.com/x402-foundation/qrpay"
)

// Tool names
const (
	ToolDecodePaymentRequest = "decode_payment_request"
	ToolEncodePaymentRequest = "encode_payment_request"
	ToolPayPaymentRequest    = "pay_payment_request"
)

// DecodeArgs are the arguments of decode_payment_request
type DecodeArgs struct {
	URI string `json:"uri" validate:"required"`
}

// DecodeResult is returned by decode_payment_request
type DecodeResult struct {
	Request x402.PaymentRequest `json:"request"`
	Display DisplayFields       `json:"display"`
}

// DisplayFields are human readable renderings of a request
type DisplayFields struct {
	Amount  string `json:"amount,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	PayTo   string `json:"payTo"`
	Network string `json:"network"`
}

// EncodeArgs are the arguments of encode_payment_request. Asset may be left
// empty when Token names a registry symbol.
type EncodeArgs struct {
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`
	Resource          string `json:"resource"`
	PayTo             string `json:"payTo" validate:"required"`
	Asset             string `json:"asset" validate:"required_without=Token"`
	Token             string `json:"token"`
	Network           string `json:"network" validate:"required"`
	Description       string `json:"description"`
	Provider          string `json:"provider"`
	AppID             string `json:"appId"`
	QRCode            string `json:"qrCode"`
}

// EncodeResult is returned by encode_payment_request
type EncodeResult struct {
	URI string `json:"uri"`
}

// PayArgs are the arguments of pay_payment_request
type PayArgs struct {
	URI string `json:"uri" validate:"required"`
}

var (
	decodeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "uri": {"type": "string", "description": "x402:// payment request"}
  },
  "required": ["uri"]
}`)

	encodeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "maxAmountRequired": {"type": "string", "description": "amount in atomic units"},
    "resource": {"type": "string"},
    "payTo": {"type": "string"},
    "asset": {"type": "string", "description": "token contract address"},
    "token": {"type": "string", "description": "token symbol resolved on network when asset is empty"},
    "network": {"type": "string"},
    "description": {"type": "string"},
    "provider": {"type": "string"},
    "appId": {"type": "string"},
    "qrCode": {"type": "string"}
  },
  "required": ["maxAmountRequired", "payTo", "network"]
}`)

	paySchema = decodeSchema
)
