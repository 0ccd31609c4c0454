package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/logger"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/payment"
)

const (
	serverName    = "x402pay"
	serverVersion = "1.0.0"
)

// ErrNoWallet is returned by pay_payment_request when no session is configured
var ErrNoWallet = errors.New("no wallet configured")

// Server registers the payment tools on an MCP server
type Server struct {
	orchestrator *payment.Orchestrator
	session      *payment.Session
	validate     *validator.Validate
	logger       logger.Logger
	mcp          *mcpsdk.Server
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = logger.OrNoop(l)
	}
}

// NewServer creates the tool server. session may be nil, in which case
// pay_payment_request reports that no wallet is configured.
func NewServer(orchestrator *payment.Orchestrator, session *payment.Session, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		session:      session,
		validate:     validator.New(),
		logger:       logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        ToolDecodePaymentRequest,
		Description: "Decode an x402:// payment request URI into its fields",
		InputSchema: decodeSchema,
	}, s.handle(ToolDecodePaymentRequest, s.decode))

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        ToolEncodePaymentRequest,
		Description: "Encode payment request fields into an x402:// URI",
		InputSchema: encodeSchema,
	}, s.handle(ToolEncodePaymentRequest, s.encode))

	s.mcp.AddTool(&mcpsdk.Tool{
		Name:        ToolPayPaymentRequest,
		Description: "Pay an x402:// payment request with the configured wallet",
		InputSchema: paySchema,
	}, s.handle(ToolPayPaymentRequest, s.pay))

	return s
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.mcp
}

// Run serves the tools over stdin/stdout until ctx is done or the client disconnects
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) decode(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args DecodeArgs
	if err := s.bind(raw, &args); err != nil {
		return nil, err
	}

	req, err := x402.DecodePaymentRequest(args.URI)
	if err != nil {
		return nil, err
	}
	return DecodeResult{Request: *req, Display: display(req)}, nil
}

func (s *Server) encode(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var args EncodeArgs
	if err := s.bind(raw, &args); err != nil {
		return nil, err
	}

	network := x402.Network(args.Network)
	asset := args.Asset
	if asset == "" {
		resolved, err := evm.ResolveTokenAddress(args.Token, network)
		if err != nil {
			return nil, err
		}
		asset = resolved
	}

	req := x402.PaymentRequest{
		MaxAmountRequired: args.MaxAmountRequired,
		Resource:          args.Resource,
		PayTo:             args.PayTo,
		Asset:             asset,
		Network:           network,
		Description:       args.Description,
	}
	if args.Provider != "" || args.AppID != "" || args.QRCode != "" {
		req.Metadata = &x402.Metadata{
			Provider: args.Provider,
			AppID:    args.AppID,
			QRCode:   args.QRCode,
		}
	}

	uri, err := x402.EncodePaymentRequest(req)
	if err != nil {
		return nil, err
	}
	return EncodeResult{URI: uri}, nil
}

func (s *Server) pay(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var args PayArgs
	if err := s.bind(raw, &args); err != nil {
		return nil, err
	}
	if s.session == nil || s.orchestrator == nil {
		return nil, ErrNoWallet
	}

	req, err := x402.DecodePaymentRequest(args.URI)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Pay(ctx, s.session, req, nil)
}

func (s *Server) bind(raw json.RawMessage, dst interface{}) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			names := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				names = append(names, fe.Field())
			}
			return fmt.Errorf("invalid arguments: %s", strings.Join(names, ", "))
		}
		return err
	}
	return nil
}

func display(req *x402.PaymentRequest) DisplayFields {
	fields := DisplayFields{
		PayTo:   x402.FormatAddress(req.PayTo, 4),
		Network: string(req.Network),
	}
	if network, err := evm.ResolveNetwork(req.Network); err == nil {
		fields.Network = network.Name
	}
	if asset, err := evm.GetAssetInfo(req.Network, req.Asset); err == nil {
		fields.Symbol = asset.Symbol
		fields.Amount = x402.FormatAmount(req.MaxAmountRequired, int32(asset.Decimals))
	}
	return fields
}
