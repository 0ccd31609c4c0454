package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/bridge"
	"github.com/x402-foundation/qrpay/internal/sandbox"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	evmsigners "github.com/x402-foundation/qrpay/signers/evm"
)

const (
	testPayTo = "0x209693Bc6afc0C5328bA36FaF03C514EF312287C"
	testAsset = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
)

type failingSigner struct{}

func (failingSigner) Address() string { return "0x857b06519E91e3A54538791bDbb0E22373e36b66" }

func (failingSigner) SignTypedData(context.Context, evm.TypedDataDomain, map[string][]evm.TypedDataField, string, map[string]interface{}) ([]byte, error) {
	return nil, errors.New("device locked")
}

func newSigner(t *testing.T) evm.ClientEvmSigner {
	t.Helper()
	signer, err := evmsigners.NewEphemeralClientSigner()
	require.NoError(t, err)
	return signer
}

func testObligation() x402.Obligation {
	return x402.Obligation{
		Scheme:            evm.SchemeExact,
		Network:           "base-sepolia",
		MaxAmountRequired: "10000",
		PayTo:             testPayTo,
		MaxTimeoutSeconds: 60,
		Asset:             testAsset,
	}
}

// stubServer answers discovery with discovery and submission with settlement
func stubServer(t *testing.T, discovery, settlement interface{}, ack string) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, bridge.PaymentPath, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get(bridge.HeaderPayment) == "" {
			w.WriteHeader(http.StatusPaymentRequired)
			_ = json.NewEncoder(w).Encode(discovery)
			return
		}
		if ack != "" {
			w.Header().Set(bridge.HeaderPaymentResponse, ack)
		}
		_ = json.NewEncoder(w).Encode(settlement)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func discoveryOf(obligations ...x402.Obligation) bridge.DiscoveryResponse {
	return bridge.DiscoveryResponse{Code: bridge.CodePaymentRequired, Msg: "payment required", X402Version: "1", Accepts: obligations}
}

func TestClient_PayAgainstSandbox(t *testing.T) {
	srv, err := sandbox.New(sandbox.Config{PayTo: testPayTo, Amount: "250000"})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	signer := newSigner(t)
	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL + "/"}, signer)
	assert.Equal(t, signer.Address(), client.Payer())

	outcome, err := client.Pay(context.Background(), bridge.DefaultAppID, "QR-1")
	require.NoError(t, err)
	assert.NotEmpty(t, outcome.Reference)
	assert.Equal(t, "250000", outcome.Amount)
	assert.Equal(t, "0.25", outcome.USDAmount)
}

func TestClient_DiscoverSendsQuery(t *testing.T) {
	signer := newSigner(t)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "APP", q.Get(bridge.ParamAppID))
		assert.Equal(t, "CODE 1", q.Get(bridge.ParamQRCode))
		assert.Equal(t, signer.Address(), q.Get(bridge.ParamAddress))
		_ = json.NewEncoder(w).Encode(discoveryOf(testObligation()))
	}))
	defer ts.Close()

	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, signer)
	obligation, err := client.Discover(context.Background(), "APP", "CODE 1")
	require.NoError(t, err)
	assert.Equal(t, testObligation(), obligation)
}

func TestClient_DiscoverTakesFirstCandidate(t *testing.T) {
	second := testObligation()
	second.Network = "base"
	ts := stubServer(t, discoveryOf(testObligation(), second), nil, "")

	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, newSigner(t))
	obligation, err := client.Discover(context.Background(), "APP", "CODE")
	require.NoError(t, err)
	assert.Equal(t, x402.Network("base-sepolia"), obligation.Network)
}

func TestClient_DiscoverUnexpected(t *testing.T) {
	badAmount := testObligation()
	badAmount.MaxAmountRequired = "0.01"

	tests := []struct {
		name string
		body interface{}
	}{
		{"wrong code", map[string]string{"code": "1002", "msg": "invalid appId"}},
		{"empty accepts", discoveryOf()},
		{"invalid obligation", discoveryOf(badAmount)},
		{"not json", "<html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if s, ok := tt.body.(string); ok {
					_, _ = w.Write([]byte(s))
					return
				}
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer ts.Close()

			client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, newSigner(t))
			_, err := client.Discover(context.Background(), "APP", "CODE")
			require.Error(t, err)
			assert.True(t, x402.IsCode(err, x402.ErrCodeUnexpectedResponse), "got %v", err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(discoveryOf(testObligation()))
	}))
	defer ts.Close()

	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL, Timeout: 20 * time.Millisecond}, newSigner(t))
	_, err := client.Discover(context.Background(), "APP", "CODE")
	require.Error(t, err)
	assert.True(t, x402.IsCode(err, x402.ErrCodeUnexpectedResponse))
}

func TestClient_InjectedClientWithoutTimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	httpClient := &http.Client{}
	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL, Timeout: 20 * time.Millisecond}, newSigner(t),
		bridge.WithHTTPClient(httpClient))

	done := make(chan error, 1)
	go func() {
		_, err := client.Discover(context.Background(), "APP", "CODE")
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, x402.IsCode(err, x402.ErrCodeUnexpectedResponse))
	case <-time.After(5 * time.Second):
		t.Fatal("discover did not time out")
	}
	assert.Zero(t, httpClient.Timeout)
}

func TestClient_TransportError(t *testing.T) {
	client := bridge.NewClient(bridge.Config{BaseURL: "http://127.0.0.1:1"}, newSigner(t))
	_, err := client.Discover(context.Background(), "APP", "CODE")
	require.Error(t, err)
	assert.True(t, x402.IsCode(err, x402.ErrCodeUnexpectedResponse))
}

func TestClient_Authorize(t *testing.T) {
	signer := newSigner(t)
	client := bridge.NewClient(bridge.Config{}, signer)

	obligation := testObligation()
	obligation.Extra = &x402.ObligationExtra{Name: "USDC", Version: "2"}

	envelope, err := client.Authorize(context.Background(), obligation)
	require.NoError(t, err)

	assert.Equal(t, bridge.X402Version, envelope.X402Version)
	assert.Equal(t, evm.SchemeExact, envelope.Scheme)
	assert.Equal(t, obligation.Network, envelope.Network)

	auth := envelope.Payload.Authorization
	assert.Equal(t, signer.Address(), auth.From)
	assert.Equal(t, testPayTo, auth.To)
	assert.Equal(t, "10000", auth.Value)

	signature, err := evm.HexToBytes(envelope.Payload.Signature)
	require.NoError(t, err)
	ok, err := evm.VerifyTransferAuthorization(auth, signature, evm.ChainIDBaseSepolia, testAsset, "USDC", "2")
	require.NoError(t, err)
	assert.True(t, ok)

	// the default domain is "USD Coin" v2, which does not match this signature
	ok, err = evm.VerifyTransferAuthorization(auth, signature, evm.ChainIDBaseSepolia, testAsset, evm.DefaultTokenName, evm.DefaultTokenVersion)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_AuthorizeFreshNonce(t *testing.T) {
	client := bridge.NewClient(bridge.Config{}, newSigner(t))

	a, err := client.Authorize(context.Background(), testObligation())
	require.NoError(t, err)
	b, err := client.Authorize(context.Background(), testObligation())
	require.NoError(t, err)
	assert.NotEqual(t, a.Payload.Authorization.Nonce, b.Payload.Authorization.Nonce)
}

func TestClient_AuthorizeCarriesObligationScheme(t *testing.T) {
	client := bridge.NewClient(bridge.Config{}, newSigner(t))

	obligation := testObligation()
	obligation.Scheme = "upto"

	envelope, err := client.Authorize(context.Background(), obligation)
	require.NoError(t, err)
	assert.Equal(t, "upto", envelope.Scheme)
}

func TestClient_AuthorizeDefaultTimeout(t *testing.T) {
	now := time.Unix(1700000000, 0)
	builder := evm.NewAuthorizationBuilder(evm.WithClock(func() time.Time { return now }))
	client := bridge.NewClient(bridge.Config{DefaultTimeoutSeconds: 300}, newSigner(t), bridge.WithAuthorizationBuilder(builder))

	obligation := testObligation()
	obligation.MaxTimeoutSeconds = 0

	envelope, err := client.Authorize(context.Background(), obligation)
	require.NoError(t, err)
	assert.Equal(t, "1700000000", envelope.Payload.Authorization.ValidAfter)
	assert.Equal(t, "1700000300", envelope.Payload.Authorization.ValidBefore)
}

func TestClient_AuthorizeErrors(t *testing.T) {
	ctx := context.Background()

	unknown := testObligation()
	unknown.Network = "dogechain"
	_, err := bridge.NewClient(bridge.Config{}, newSigner(t)).Authorize(ctx, unknown)
	assert.True(t, x402.IsCode(err, x402.ErrCodeUnknownNetwork))

	negative := testObligation()
	negative.MaxTimeoutSeconds = -5
	_, err = bridge.NewClient(bridge.Config{}, newSigner(t)).Authorize(ctx, negative)
	assert.True(t, x402.IsCode(err, x402.ErrCodeInvalidTimeout))

	_, err = bridge.NewClient(bridge.Config{}, newSigner(t)).Authorize(ctx, testObligation(), evm.WithAmount("10001"))
	assert.True(t, x402.IsCode(err, x402.ErrCodeAmountExceedsMaximum))

	_, err = bridge.NewClient(bridge.Config{}, failingSigner{}).Authorize(ctx, testObligation())
	require.Error(t, err)
	assert.True(t, x402.IsCode(err, x402.ErrCodeSigningFailed))
	assert.Contains(t, err.Error(), "device locked")
}

func TestClient_SubmitRejected(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]string
		message string
	}{
		{"verbatim message", map[string]string{"code": "1001", "msg": "insufficient funds"}, "insufficient funds"},
		{"empty message", map[string]string{"code": "5000"}, "settlement rejected with code 5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := stubServer(t, discoveryOf(testObligation()), tt.body, "")
			client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, newSigner(t))

			_, err := client.Pay(context.Background(), "APP", "CODE")
			require.Error(t, err)
			assert.True(t, x402.IsCode(err, x402.ErrCodeSettlementRejected))
			assert.Equal(t, tt.message, x402.ErrorMessage(err))
		})
	}
}

func TestClient_SubmitReferenceFallbacks(t *testing.T) {
	ack, err := bridge.EncodeAck(bridge.PaymentAck{Success: true, Transaction: "0xfromack"})
	require.NoError(t, err)

	tests := []struct {
		name      string
		body      interface{}
		ack       string
		reference string
		orderNo   string
	}{
		{
			name:      "tx hash",
			body:      map[string]interface{}{"code": "0", "model": map[string]interface{}{"num": "N1", "txHash": "0xabc"}},
			ack:       ack,
			reference: "0xabc",
			orderNo:   "N1",
		},
		{
			name:      "ack header",
			body:      map[string]interface{}{"code": "0", "model": map[string]interface{}{"num": "N2"}},
			ack:       ack,
			reference: "0xfromack",
			orderNo:   "N2",
		},
		{
			name:      "numeric order number",
			body:      map[string]interface{}{"code": "0", "model": map[string]interface{}{"num": 77}},
			reference: "77",
			orderNo:   "77",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := stubServer(t, discoveryOf(testObligation()), tt.body, tt.ack)
			client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, newSigner(t))

			outcome, err := client.Pay(context.Background(), "APP", "CODE")
			require.NoError(t, err)
			assert.Equal(t, tt.reference, outcome.Reference)
			assert.Equal(t, tt.orderNo, outcome.OrderNo)
		})
	}
}

func TestClient_SubmitWithoutReference(t *testing.T) {
	ts := stubServer(t, discoveryOf(testObligation()), map[string]string{"code": "0", "msg": "ok"}, "")
	client := bridge.NewClient(bridge.Config{BaseURL: ts.URL}, newSigner(t))

	_, err := client.Pay(context.Background(), "APP", "CODE")
	require.Error(t, err)
	assert.True(t, x402.IsCode(err, x402.ErrCodeUnexpectedResponse))
}

func TestClient_SubmitNilEnvelope(t *testing.T) {
	client := bridge.NewClient(bridge.Config{}, newSigner(t))
	_, err := client.Submit(context.Background(), "APP", "CODE", nil)
	assert.True(t, x402.IsCode(err, x402.ErrCodeInvalidPayload))
}

func TestEnvelope_EncodeDecode(t *testing.T) {
	client := bridge.NewClient(bridge.Config{}, newSigner(t))
	envelope, err := client.Authorize(context.Background(), testObligation())
	require.NoError(t, err)

	header, err := envelope.Encode()
	require.NoError(t, err)

	decoded, err := bridge.DecodeEnvelope(header)
	require.NoError(t, err)
	assert.Equal(t, envelope, decoded)

	_, err = bridge.DecodeEnvelope("not base64!")
	assert.Error(t, err)
}

func TestEnvironment_BaseURL(t *testing.T) {
	assert.Equal(t, bridge.SandboxBaseURL, bridge.EnvironmentSandbox.BaseURL())
	assert.Equal(t, bridge.ProductionBaseURL, bridge.EnvironmentProduction.BaseURL())
	assert.Equal(t, bridge.SandboxBaseURL, bridge.Environment("staging").BaseURL())
}
