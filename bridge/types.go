package bridge

import (
	"encoding/json"

	x402 "github.com/x402-foundation/qrpay"
)

const (
	// Settlement endpoint hosts
	SandboxBaseURL    = "https://ai-api-sbx.aeon.xyz"
	ProductionBaseURL = "https://ai-api.aeon.xyz"

	// PaymentPath serves both discovery and submission
	PaymentPath = "/open/ai/402/payment"

	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-Payment-Response"

	// Body status codes
	CodePaymentRequired = "402"
	CodeSuccess         = "0"

	X402Version = 1

	// DefaultAppID is the public test merchant
	DefaultAppID = "TEST000001"

	// ProviderName is the metadata provider marker for this dialect
	ProviderName = "aeon"

	// Query parameters
	ParamAppID   = "appId"
	ParamQRCode  = "qrCode"
	ParamAddress = "address"
)

// Environment selects a settlement endpoint
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// BaseURL returns the endpoint for env; unknown values map to sandbox
func (env Environment) BaseURL() string {
	if env == EnvironmentProduction {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// FlexString accepts a JSON string or number
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// DiscoveryResponse is the body of the first call
type DiscoveryResponse struct {
	Code        string            `json:"code"`
	Msg         string            `json:"msg"`
	TraceID     string            `json:"traceId,omitempty"`
	X402Version FlexString        `json:"x402Version,omitempty"`
	Error       string            `json:"error,omitempty"`
	Accepts     []x402.Obligation `json:"accepts"`
}

// SettlementModel is the settled order returned by the second call
type SettlementModel struct {
	Num       FlexString `json:"num"`
	TxHash    FlexString `json:"txHash,omitempty"`
	USDAmount FlexString `json:"usdAmount,omitempty"`
	Status    FlexString `json:"status,omitempty"`
}

// SettlementResponse is the body of the second call
type SettlementResponse struct {
	Code    string           `json:"code"`
	Msg     string           `json:"msg"`
	TraceID string           `json:"traceId,omitempty"`
	Model   *SettlementModel `json:"model,omitempty"`
}

// PaymentAck is the decoded X-Payment-Response header
type PaymentAck struct {
	Success     bool         `json:"success"`
	Transaction string       `json:"transaction,omitempty"`
	TxHash      string       `json:"txHash,omitempty"`
	Network     x402.Network `json:"network,omitempty"`
	Payer       string       `json:"payer,omitempty"`
	ErrorReason string       `json:"errorReason,omitempty"`
}

// reference returns whichever transaction identifier the ack carries
func (a *PaymentAck) reference() string {
	if a == nil {
		return ""
	}
	if a.Transaction != "" {
		return a.Transaction
	}
	return a.TxHash
}
