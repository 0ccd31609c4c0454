package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/bridge"
	"github.com/x402-foundation/qrpay/internal/sandbox"
	"github.com/x402-foundation/qrpay/mcp"
	"github.com/x402-foundation/qrpay/payment"
	evmsigners "github.com/x402-foundation/qrpay/signers/evm"
)

const testPayTo = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-agent", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callTool(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestListTools(t *testing.T) {
	session := connect(t, mcp.NewServer(nil, nil))

	result, err := session.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		mcp.ToolDecodePaymentRequest,
		mcp.ToolEncodePaymentRequest,
		mcp.ToolPayPaymentRequest,
	}, names)
}

func TestEncodeThenDecode(t *testing.T) {
	session := connect(t, mcp.NewServer(nil, nil))

	text, isErr := callTool(t, session, mcp.ToolEncodePaymentRequest, map[string]any{
		"maxAmountRequired": "1500000",
		"resource":          "order-9",
		"payTo":             testPayTo,
		"token":             "usdc",
		"network":           "base",
		"provider":          "aeon",
		"qrCode":            "QR-9",
	})
	require.False(t, isErr, text)

	var encoded mcp.EncodeResult
	require.NoError(t, json.Unmarshal([]byte(text), &encoded))
	assert.Contains(t, encoded.URI, x402.URIScheme)

	text, isErr = callTool(t, session, mcp.ToolDecodePaymentRequest, map[string]any{"uri": encoded.URI})
	require.False(t, isErr, text)

	var decoded mcp.DecodeResult
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	assert.Equal(t, "1500000", decoded.Request.MaxAmountRequired)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", decoded.Request.Asset)
	require.NotNil(t, decoded.Request.Metadata)
	assert.Equal(t, "QR-9", decoded.Request.Metadata.QRCode)

	assert.Equal(t, "1.5", decoded.Display.Amount)
	assert.Equal(t, "USDC", decoded.Display.Symbol)
	assert.Equal(t, "Base", decoded.Display.Network)
	assert.Equal(t, "0x2096...287C", decoded.Display.PayTo)
}

func TestToolErrors(t *testing.T) {
	session := connect(t, mcp.NewServer(nil, nil))

	tests := []struct {
		name    string
		tool    string
		args    map[string]any
		message string
	}{
		{"malformed uri", mcp.ToolDecodePaymentRequest, map[string]any{"uri": "https://example.com"}, "payment request must start with x402://"},
		{"missing uri", mcp.ToolDecodePaymentRequest, map[string]any{}, "invalid arguments: URI"},
		{"missing asset and token", mcp.ToolEncodePaymentRequest, map[string]any{"maxAmountRequired": "1", "payTo": testPayTo, "network": "base"}, "invalid arguments: Asset"},
		{"token not on network", mcp.ToolEncodePaymentRequest, map[string]any{"maxAmountRequired": "1", "payTo": testPayTo, "network": "base", "token": "WBTC"}, "unknown token: WBTC"},
		{"no wallet", mcp.ToolPayPaymentRequest, map[string]any{"uri": "x402://e30="}, "no wallet configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, session, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.Equal(t, tt.message, text)
		})
	}
}

func TestPay(t *testing.T) {
	srv, err := sandbox.New(sandbox.Config{PayTo: testPayTo, Amount: "10000"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	signer, err := evmsigners.NewEphemeralClientSigner()
	require.NoError(t, err)

	orchestrator := payment.New(payment.Config{Bridge: bridge.Config{BaseURL: ts.URL}})
	session := connect(t, mcp.NewServer(orchestrator, payment.NewSession(signer)))

	uri, err := x402.EncodePaymentRequest(x402.PaymentRequest{
		MaxAmountRequired: "10000",
		Resource:          "order-1",
		PayTo:             testPayTo,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Network:           "base-sepolia",
		Metadata:          &x402.Metadata{Provider: "aeon", QRCode: "QR-1"},
	})
	require.NoError(t, err)

	text, isErr := callTool(t, session, mcp.ToolPayPaymentRequest, map[string]any{"uri": uri})
	require.False(t, isErr, text)

	var result payment.Result
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SettlementReference)
	assert.Equal(t, "base-sepolia", result.Network)
}
