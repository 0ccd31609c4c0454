package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/logger"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/metrics"
)

const (
	// DefaultTimeout bounds each HTTP call
	DefaultTimeout = 30 * time.Second

	// DefaultTimeoutSeconds is the authorization window used when an
	// obligation does not declare maxTimeoutSeconds
	DefaultTimeoutSeconds = 60

	maxResponseBytes = 1 << 20

	phaseDiscover = "discover"
	phaseSubmit   = "submit"
)

// Config configures a settlement Client
type Config struct {
	// BaseURL of the settlement endpoint, defaults to the sandbox host
	BaseURL string
	// Timeout per HTTP call, defaults to DefaultTimeout
	Timeout time.Duration
	// DefaultTimeoutSeconds is used for obligations with maxTimeoutSeconds == 0
	DefaultTimeoutSeconds int64
}

func (c Config) baseURL() string {
	if c.BaseURL == "" {
		return SandboxBaseURL
	}
	return strings.TrimRight(c.BaseURL, "/")
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) defaultTimeoutSeconds() int64 {
	if c.DefaultTimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return c.DefaultTimeoutSeconds
}

// Client drives the two-phase discover/submit exchange for one payer.
// The payer is fixed for the lifetime of the client.
type Client struct {
	config     Config
	payer      string
	signer     evm.ClientEvmSigner
	builder    *evm.AuthorizationBuilder
	httpClient *http.Client
	logger     logger.Logger
	metrics    metrics.Recorder
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A client without a Timeout gets
// Config.Timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAuthorizationBuilder replaces the authorization builder
func WithAuthorizationBuilder(builder *evm.AuthorizationBuilder) Option {
	return func(c *Client) {
		c.builder = builder
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNoop(l)
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = metrics.OrNoop(r)
	}
}

// NewClient creates a settlement client paying from signer's address
func NewClient(config Config, signer evm.ClientEvmSigner, opts ...Option) *Client {
	c := &Client{
		config:     config,
		payer:      signer.Address(),
		signer:     signer,
		builder:    evm.NewAuthorizationBuilder(),
		httpClient: &http.Client{Timeout: config.timeout()},
		logger:     logger.NoopLogger{},
		metrics:    metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.httpClient.Timeout <= 0 {
		bounded := *c.httpClient
		bounded.Timeout = config.timeout()
		c.httpClient = &bounded
	}
	return c
}

// Payer returns the address this client pays from
func (c *Client) Payer() string {
	return c.payer
}

// Discover fetches the obligations for (appID, code) and returns the first.
// Further candidates are ignored.
func (c *Client) Discover(ctx context.Context, appID, code string) (x402.Obligation, error) {
	body, _, err := c.do(ctx, phaseDiscover, appID, code, "")
	if err != nil {
		return x402.Obligation{}, err
	}

	var resp DiscoveryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.record(phaseDiscover, "invalid")
		return x402.Obligation{}, x402.WrapPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("failed to decode discovery response: %v", err), err)
	}

	if resp.Code != CodePaymentRequired {
		c.record(phaseDiscover, "unexpected")
		return x402.Obligation{}, x402.NewPaymentError(x402.ErrCodeUnexpectedResponse, unexpectedMessage(resp.Code, resp.Msg), map[string]interface{}{
			"code":    resp.Code,
			"traceId": resp.TraceID,
		})
	}
	if len(resp.Accepts) == 0 {
		c.record(phaseDiscover, "unexpected")
		return x402.Obligation{}, x402.NewPaymentError(x402.ErrCodeUnexpectedResponse, unexpectedMessage(resp.Code, "no payment options offered"), nil)
	}

	obligation := resp.Accepts[0]
	if err := x402.ValidateObligation(obligation); err != nil {
		c.record(phaseDiscover, "invalid")
		return x402.Obligation{}, err
	}

	c.record(phaseDiscover, "ok")
	c.logger.Info("payment obligation discovered", map[string]any{
		"appId":      appID,
		"network":    obligation.Network,
		"amount":     obligation.MaxAmountRequired,
		"payTo":      obligation.PayTo,
		"timeout":    obligation.MaxTimeoutSeconds,
		"candidates": len(resp.Accepts),
	})
	return obligation, nil
}

// Authorize builds a fresh authorization for obligation and signs it.
// Signer failures surface as signing_failed.
func (c *Client) Authorize(ctx context.Context, obligation x402.Obligation, opts ...evm.BuildOption) (*Envelope, error) {
	network, err := evm.ResolveNetwork(obligation.Network)
	if err != nil {
		return nil, err
	}

	timeout := obligation.MaxTimeoutSeconds
	if timeout == 0 {
		timeout = c.config.defaultTimeoutSeconds()
	}

	authorization, err := c.builder.Build(obligation, c.payer, timeout, opts...)
	if err != nil {
		return nil, err
	}

	tokenName, tokenVersion := evm.DefaultTokenName, evm.DefaultTokenVersion
	if obligation.Extra != nil {
		if obligation.Extra.Name != "" {
			tokenName = obligation.Extra.Name
		}
		if obligation.Extra.Version != "" {
			tokenVersion = obligation.Extra.Version
		}
	}

	typedData, err := evm.ToTypedData(authorization, obligation.Asset, network.ChainID, tokenName, tokenVersion)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeInvalidPayload, err.Error(), err)
	}

	signature, err := c.signer.SignTypedData(ctx, typedData.Domain, typedData.Types, typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeSigningFailed, fmt.Sprintf("failed to sign authorization: %v", err), err)
	}

	c.logger.Debug("authorization signed", map[string]any{
		"nonce":       authorization.Nonce,
		"validAfter":  authorization.ValidAfter,
		"validBefore": authorization.ValidBefore,
		"value":       authorization.Value,
		"chainId":     network.ChainID.String(),
	})

	return &Envelope{
		X402Version: X402Version,
		Scheme:      obligation.Scheme,
		Network:     obligation.Network,
		Payload: evm.SignedAuthorization{
			Signature:     evm.BytesToHex(signature),
			Authorization: authorization,
		},
	}, nil
}

// Submit re-issues the discovery call with the envelope attached. A body code
// other than "0" fails with settlement_rejected carrying the provider message.
func (c *Client) Submit(ctx context.Context, appID, code string, envelope *Envelope) (*x402.SettlementOutcome, error) {
	if envelope == nil {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, "envelope is required", nil)
	}

	header, err := envelope.Encode()
	if err != nil {
		return nil, x402.WrapPaymentError(x402.ErrCodeInvalidPayload, err.Error(), err)
	}

	body, headers, err := c.do(ctx, phaseSubmit, appID, code, header)
	if err != nil {
		return nil, err
	}

	var resp SettlementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.record(phaseSubmit, "invalid")
		return nil, x402.WrapPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("failed to decode settlement response: %v", err), err)
	}

	var ack *PaymentAck
	if raw := headers.Get(HeaderPaymentResponse); raw != "" {
		ack, err = DecodeAck(raw)
		if err != nil {
			c.logger.Warn("ignoring undecodable payment response header", map[string]any{"error": err})
		} else {
			c.logger.Debug("payment response header", map[string]any{
				"success":     ack.Success,
				"transaction": ack.reference(),
				"errorReason": ack.ErrorReason,
			})
		}
	}

	if resp.Code != CodeSuccess {
		c.record(phaseSubmit, "rejected")
		message := resp.Msg
		if message == "" {
			message = fmt.Sprintf("settlement rejected with code %s", resp.Code)
		}
		c.logger.Warn("settlement rejected", map[string]any{
			"code":    resp.Code,
			"message": message,
			"traceId": resp.TraceID,
		})
		return nil, x402.NewSettlementRejectedError(message, map[string]interface{}{
			"code":    resp.Code,
			"traceId": resp.TraceID,
		})
	}

	outcome := &x402.SettlementOutcome{
		Amount:  envelope.Payload.Authorization.Value,
		Network: envelope.Network,
	}
	if resp.Model != nil {
		outcome.Reference = string(resp.Model.TxHash)
		outcome.OrderNo = string(resp.Model.Num)
		outcome.USDAmount = string(resp.Model.USDAmount)
		outcome.Status = string(resp.Model.Status)
	}
	if outcome.Reference == "" {
		outcome.Reference = ack.reference()
	}
	if outcome.Reference == "" {
		outcome.Reference = outcome.OrderNo
	}
	if outcome.Reference == "" {
		c.record(phaseSubmit, "unexpected")
		return nil, x402.NewPaymentError(x402.ErrCodeUnexpectedResponse, "settlement succeeded without a reference", nil)
	}

	c.record(phaseSubmit, "ok")
	c.logger.Info("settlement complete", map[string]any{
		"reference": outcome.Reference,
		"orderNo":   outcome.OrderNo,
		"usdAmount": outcome.USDAmount,
		"network":   outcome.Network,
	})
	return outcome, nil
}

// Pay runs discover, authorize and submit back to back
func (c *Client) Pay(ctx context.Context, appID, code string) (*x402.SettlementOutcome, error) {
	obligation, err := c.Discover(ctx, appID, code)
	if err != nil {
		return nil, err
	}
	envelope, err := c.Authorize(ctx, obligation)
	if err != nil {
		return nil, err
	}
	return c.Submit(ctx, appID, code, envelope)
}

// do issues GET PaymentPath and returns the raw body. Transport failures and
// timeouts surface as unexpected_response; they are never retried here.
func (c *Client) do(ctx context.Context, phase, appID, code, paymentHeader string) ([]byte, http.Header, error) {
	query := url.Values{}
	query.Set(ParamAppID, appID)
	query.Set(ParamQRCode, code)
	query.Set(ParamAddress, c.payer)
	endpoint := c.config.baseURL() + PaymentPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil, x402.WrapPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("failed to create request: %v", err), err)
	}
	req.Header.Set("Accept", "application/json")
	if paymentHeader != "" {
		req.Header.Set(HeaderPayment, paymentHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(phase, "transport_error")
		return nil, nil, x402.WrapPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("failed to send %s request: %v", phase, err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.record(phase, "transport_error")
		return nil, nil, x402.WrapPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("failed to read %s response: %v", phase, err), err)
	}

	if !json.Valid(body) {
		c.record(phase, "invalid")
		return nil, nil, x402.NewPaymentError(x402.ErrCodeUnexpectedResponse, fmt.Sprintf("%s returned non-JSON response: %s", phase, resp.Status), map[string]interface{}{
			"status": resp.StatusCode,
		})
	}

	return body, resp.Header, nil
}

func (c *Client) record(phase, outcome string) {
	c.metrics.IncCounter(metrics.SettlementCalls, map[string]string{
		"phase":   phase,
		"outcome": outcome,
	})
}

func unexpectedMessage(code, msg string) string {
	if msg == "" {
		return fmt.Sprintf("unexpected response code %q", code)
	}
	return fmt.Sprintf("unexpected response: %s", msg)
}
