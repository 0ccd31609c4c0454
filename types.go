package x402

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Network is a registry key such as "base" or "base-sepolia"
type Network string

// Known metadata keys. Anything else is kept in Metadata.Extra.
const (
	MetadataKeyProvider        = "provider"
	MetadataKeyAppID           = "appId"
	MetadataKeyQRCode          = "qrCode"
	MetadataKeyItemName        = "itemName"
	MetadataKeyItemDescription = "itemDescription"
	MetadataKeyTimestamp       = "timestamp"
	MetadataKeySeller          = "seller"
)

// PaymentRequest is the discovery payload carried inside an x402:// URI.
// Field order is fixed so that encoding is deterministic.
type PaymentRequest struct {
	MaxAmountRequired string    `json:"maxAmountRequired"`
	Resource          string    `json:"resource"`
	PayTo             string    `json:"payTo"`
	Asset             string    `json:"asset"`
	Network           Network   `json:"network"`
	Description       string    `json:"description,omitempty"`
	Metadata          *Metadata `json:"metadata,omitempty"`
}

// Metadata holds provider extensions of a payment request. Known keys are
// typed; unrecognised keys, and known keys whose value does not fit the typed
// field, are preserved verbatim in Extra.
type Metadata struct {
	Provider        string
	AppID           string
	QRCode          string
	ItemName        string
	ItemDescription string
	Timestamp       int64
	Seller          string
	Extra           map[string]json.RawMessage
	// Raw holds a metadata value that is not a JSON object
	Raw json.RawMessage
}

// ProviderIs reports whether the metadata names the given provider, ignoring case
func (m *Metadata) ProviderIs(provider string) bool {
	if m == nil {
		return false
	}
	return strings.EqualFold(m.Provider, provider)
}

// MarshalJSON writes the known keys first and the extra keys in sorted order
func (m Metadata) MarshalJSON() ([]byte, error) {
	if len(m.Raw) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, m.Raw); err != nil {
			return nil, fmt.Errorf("invalid raw metadata: %w", err)
		}
		return compact.Bytes(), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	n := 0
	written := make(map[string]bool)

	put := func(key string, raw []byte) {
		written[key] = true
		if n > 0 {
			buf.WriteByte(',')
		}
		n++
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(raw)
	}
	putString := func(key, value string) {
		if value == "" {
			return
		}
		raw, _ := json.Marshal(value)
		put(key, raw)
	}

	putString(MetadataKeyProvider, m.Provider)
	putString(MetadataKeyAppID, m.AppID)
	putString(MetadataKeyQRCode, m.QRCode)
	putString(MetadataKeyItemName, m.ItemName)
	putString(MetadataKeyItemDescription, m.ItemDescription)
	if m.Timestamp != 0 {
		put(MetadataKeyTimestamp, []byte(fmt.Sprintf("%d", m.Timestamp)))
	}
	putString(MetadataKeySeller, m.Seller)

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		if written[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var compact bytes.Buffer
		if err := json.Compact(&compact, m.Extra[k]); err != nil {
			return nil, fmt.Errorf("invalid metadata value for %q: %w", k, err)
		}
		put(k, compact.Bytes())
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON splits the object into typed fields and the Extra bag. A value
// that does not fit its typed field lands in Extra instead of failing.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	*m = Metadata{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var compact bytes.Buffer
		if cerr := json.Compact(&compact, data); cerr != nil {
			return err
		}
		m.Raw = compact.Bytes()
		return nil
	}

	stringFields := map[string]*string{
		MetadataKeyProvider:        &m.Provider,
		MetadataKeyAppID:           &m.AppID,
		MetadataKeyQRCode:          &m.QRCode,
		MetadataKeyItemName:        &m.ItemName,
		MetadataKeyItemDescription: &m.ItemDescription,
		MetadataKeySeller:          &m.Seller,
	}

	for key, value := range raw {
		if dst, ok := stringFields[key]; ok {
			if json.Unmarshal(value, dst) == nil {
				continue
			}
		} else if key == MetadataKeyTimestamp {
			if json.Unmarshal(value, &m.Timestamp) == nil {
				continue
			}
		}
		if err := m.putExtra(key, value); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metadata) putExtra(key string, value json.RawMessage) error {
	if m.Extra == nil {
		m.Extra = make(map[string]json.RawMessage)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, value); err != nil {
		return fmt.Errorf("metadata %s: %w", key, err)
	}
	m.Extra[key] = compact.Bytes()
	return nil
}

// ObligationExtra carries dialect-specific hints attached to an obligation
type ObligationExtra struct {
	OrderNo string `json:"orderNo,omitempty"`
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// Obligation is a server-declared request for payment returned by discovery
type Obligation struct {
	Scheme            string           `json:"scheme" validate:"required"`
	Network           Network          `json:"network" validate:"required"`
	MaxAmountRequired string           `json:"maxAmountRequired" validate:"required,atomic"`
	Resource          string           `json:"resource"`
	Description       string           `json:"description,omitempty"`
	MimeType          string           `json:"mimeType,omitempty"`
	PayTo             string           `json:"payTo" validate:"required,eth_addr"`
	MaxTimeoutSeconds int64            `json:"maxTimeoutSeconds"`
	Asset             string           `json:"asset" validate:"required,eth_addr"`
	Extra             *ObligationExtra `json:"extra,omitempty"`
}

// SettlementOutcome is the successful result of submitting an authorization
type SettlementOutcome struct {
	Reference string  `json:"reference"`
	OrderNo   string  `json:"orderNo,omitempty"`
	Amount    string  `json:"amount"`
	USDAmount string  `json:"usdAmount,omitempty"`
	Network   Network `json:"network"`
	Status    string  `json:"status,omitempty"`
}
