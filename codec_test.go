package x402

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() PaymentRequest {
	return PaymentRequest{
		MaxAmountRequired: "1000000",
		Resource:          "order-42",
		PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		Network:           "base-sepolia",
	}
}

func encodeRaw(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return URIScheme + base64.StdEncoding.EncodeToString(data)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ascii := sampleRequest()
	ascii.Description = "Coffee, large"

	unicode := sampleRequest()
	unicode.Description = "Café crème ☕ 咖啡"

	withMetadata := sampleRequest()
	withMetadata.Metadata = &Metadata{
		Provider:  "aeon",
		AppID:     "APP123",
		QRCode:    "aeon-qr-code",
		ItemName:  "Latte",
		Timestamp: 1700000000000,
		Extra: map[string]json.RawMessage{
			"tableNo": json.RawMessage(`7`),
			"tags":    json.RawMessage(`["hot","oat"]`),
		},
	}

	tests := []struct {
		name string
		req  PaymentRequest
	}{
		{"minimal", sampleRequest()},
		{"ascii description", ascii},
		{"non-ascii description", unicode},
		{"metadata with extras", withMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := EncodePaymentRequest(tt.req)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(uri, "x402://"))

			decoded, err := DecodePaymentRequest(uri)
			require.NoError(t, err)
			assert.Equal(t, tt.req, *decoded)
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	req := sampleRequest()
	req.Metadata = &Metadata{
		Provider: "aeon",
		Extra: map[string]json.RawMessage{
			"z": json.RawMessage(`1`),
			"a": json.RawMessage(`2`),
			"m": json.RawMessage(`3`),
		},
	}

	first, err := EncodePaymentRequest(req)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		next, err := EncodePaymentRequest(req)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(first, URIScheme))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"metadata":{"provider":"aeon","a":2,"m":3,"z":1}`)
}

func TestEncodeUsesStandardAlphabet(t *testing.T) {
	req := sampleRequest()
	req.Description = "???>>>"

	uri, err := EncodePaymentRequest(req)
	require.NoError(t, err)
	payload := strings.TrimPrefix(uri, URIScheme)
	assert.NotContains(t, payload, "-")
	assert.NotContains(t, payload, "_")

	decoded, err := DecodePaymentRequest(uri)
	require.NoError(t, err)
	assert.Equal(t, req.Description, decoded.Description)
}

func TestDecodePaymentRequestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
		field string
	}{
		{
			name:  "missing scheme",
			input: base64.StdEncoding.EncodeToString([]byte(`{}`)),
			code:  ErrCodeMalformedURI,
		},
		{
			name:  "other scheme",
			input: "https://example.com",
			code:  ErrCodeMalformedURI,
		},
		{
			name:  "bad base64",
			input: "x402://not*base64!",
			code:  ErrCodeInvalidEncoding,
		},
		{
			name:  "url-safe alphabet rejected",
			input: "x402://" + base64.URLEncoding.EncodeToString([]byte{0xfb, 0xff}),
			code:  ErrCodeInvalidEncoding,
		},
		{
			name:  "invalid utf-8",
			input: "x402://" + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd}),
			code:  ErrCodeInvalidEncoding,
		},
		{
			name:  "not json",
			input: "x402://" + base64.StdEncoding.EncodeToString([]byte("hello")),
			code:  ErrCodeInvalidPayload,
		},
		{
			name: "missing payTo",
			input: encodeRaw(t, map[string]string{
				"maxAmountRequired": "1",
				"asset":             "0x0000000000000000000000000000000000000000",
				"network":           "base",
			}),
			code:  ErrCodeMissingField,
			field: "payTo",
		},
		{
			name:  "all missing reports maxAmountRequired first",
			input: encodeRaw(t, map[string]string{"resource": "r"}),
			code:  ErrCodeMissingField,
			field: "maxAmountRequired",
		},
		{
			name: "empty string counts as absent",
			input: encodeRaw(t, map[string]string{
				"maxAmountRequired": "1",
				"payTo":             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"asset":             "",
				"network":           "",
			}),
			code:  ErrCodeMissingField,
			field: "asset",
		},
		{
			name: "missing network",
			input: encodeRaw(t, map[string]string{
				"maxAmountRequired": "1",
				"payTo":             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"asset":             "0x0000000000000000000000000000000000000000",
			}),
			code:  ErrCodeMissingField,
			field: "network",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := DecodePaymentRequest(tt.input)
			require.Error(t, err)
			assert.Nil(t, req)
			assert.True(t, IsCode(err, tt.code), "expected %s, got %v", tt.code, err)
			if tt.field != "" {
				field, ok := MissingFieldName(err)
				require.True(t, ok)
				assert.Equal(t, tt.field, field)
			}
		})
	}
}

func TestDecodeDefersAddressValidation(t *testing.T) {
	uri := encodeRaw(t, map[string]string{
		"maxAmountRequired": "not-a-number",
		"payTo":             "nowhere",
		"asset":             "xyz",
		"network":           "unknown-chain",
	})

	req, err := DecodePaymentRequest(uri)
	require.NoError(t, err)
	assert.Equal(t, "nowhere", req.PayTo)
	assert.Equal(t, Network("unknown-chain"), req.Network)
}

func TestMetadataProviderIs(t *testing.T) {
	var nilMeta *Metadata
	assert.False(t, nilMeta.ProviderIs("aeon"))
	assert.True(t, (&Metadata{Provider: "AEON"}).ProviderIs("aeon"))
	assert.False(t, (&Metadata{Provider: "other"}).ProviderIs("aeon"))
}

func TestDecodeKeepsMismatchedMetadataInExtra(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  string
	}{
		{"iso timestamp", "timestamp", "2024-01-01T00:00:00Z", `"2024-01-01T00:00:00Z"`},
		{"fractional timestamp", "timestamp", 1700000000000.5, `1700000000000.5`},
		{"seller object", "seller", map[string]string{"name": "Bob"}, `{"name":"Bob"}`},
		{"numeric app id", "appId", 42, `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]interface{}{
				"maxAmountRequired": "1",
				"payTo":             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"asset":             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				"network":           "base-sepolia",
				"metadata": map[string]interface{}{
					"provider": "aeon",
					tt.key:     tt.value,
				},
			}

			req, err := DecodePaymentRequest(encodeRaw(t, payload))
			require.NoError(t, err)
			require.NotNil(t, req.Metadata)
			assert.Equal(t, "aeon", req.Metadata.Provider)
			assert.JSONEq(t, tt.want, string(req.Metadata.Extra[tt.key]))

			uri, err := EncodePaymentRequest(*req)
			require.NoError(t, err)
			again, err := DecodePaymentRequest(uri)
			require.NoError(t, err)
			assert.Equal(t, req.Metadata, again.Metadata)
		})
	}
}

func TestDecodeKeepsNonObjectMetadata(t *testing.T) {
	for _, raw := range []string{`"aeon"`, `[1,2]`, `7`} {
		t.Run(raw, func(t *testing.T) {
			payload := map[string]interface{}{
				"maxAmountRequired": "1",
				"payTo":             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
				"asset":             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				"network":           "base-sepolia",
				"metadata":          json.RawMessage(raw),
			}

			req, err := DecodePaymentRequest(encodeRaw(t, payload))
			require.NoError(t, err)
			require.NotNil(t, req.Metadata)
			assert.Equal(t, raw, string(req.Metadata.Raw))
			assert.False(t, req.Metadata.ProviderIs("aeon"))

			data, err := json.Marshal(req)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"metadata":`+raw)
		})
	}
}
