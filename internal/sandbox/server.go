// Package sandbox emulates the attestation-bridge settlement endpoint. It
// verifies envelopes the way the real provider would but never touches a chain.
package sandbox

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/bridge"
	"github.com/x402-foundation/qrpay/logger"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

const (
	CodeBadRequest    = "400"
	CodeInvalidAppID  = "1002"
	CodeInvalidPay    = "1003"
	DefaultRejectCode = "1001"

	defaultReplayTTL = 10 * time.Minute
)

// Config describes the obligation the sandbox hands out
type Config struct {
	Network        x402.Network
	PayTo          string
	Amount         string
	Asset          string
	TimeoutSeconds int64
	// AppID restricts the accepted appId; empty accepts any
	AppID string
	// RejectMessage, when set, makes every submission fail with this message
	RejectMessage string
	RejectCode    string
	ReplayTTL     time.Duration
}

// Server is the emulated endpoint
type Server struct {
	config       Config
	chainID      *big.Int
	asset        evm.AssetInfo
	tokenName    string
	tokenVersion string
	maxAmount    *big.Int
	cache        *SettlementCache
	now          func() time.Time
	logger       logger.Logger
	engine       *gin.Engine
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = logger.OrNoop(l)
	}
}

// WithClock overrides the clock used to check validity windows
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
		s.cache.now = now
	}
}

// New validates config and builds the gin engine
func New(config Config, opts ...Option) (*Server, error) {
	if config.Network == "" {
		config.Network = "base-sepolia"
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = bridge.DefaultTimeoutSeconds
	}
	if config.RejectCode == "" {
		config.RejectCode = DefaultRejectCode
	}
	if config.ReplayTTL <= 0 {
		config.ReplayTTL = defaultReplayTTL
	}

	network, err := evm.ResolveNetwork(config.Network)
	if err != nil {
		return nil, err
	}
	if config.Asset == "" {
		config.Asset = network.DefaultAsset.Address
	}
	if !evm.IsValidAddress(config.PayTo) {
		return nil, fmt.Errorf("invalid payTo address: %q", config.PayTo)
	}
	maxAmount, ok := x402.ParseAtomicAmount(config.Amount)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", config.Amount)
	}

	asset, err := evm.GetAssetInfo(config.Network, config.Asset)
	if err != nil {
		return nil, err
	}
	tokenName, tokenVersion := asset.Name, asset.Version
	if tokenName == "" {
		tokenName = evm.DefaultTokenName
	}
	if tokenVersion == "" {
		tokenVersion = evm.DefaultTokenVersion
	}

	s := &Server{
		config:       config,
		chainID:      network.ChainID,
		asset:        asset,
		tokenName:    tokenName,
		tokenVersion: tokenVersion,
		maxAmount:    maxAmount,
		cache:        NewSettlementCache(config.ReplayTTL),
		now:          time.Now,
		logger:       logger.NoopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(bridge.PaymentPath, s.handlePayment)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine = r

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until the listener fails
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) handlePayment(c *gin.Context) {
	appID := c.Query(bridge.ParamAppID)
	qrCode := c.Query(bridge.ParamQRCode)
	address := c.Query(bridge.ParamAddress)

	if appID == "" || qrCode == "" || address == "" {
		c.JSON(http.StatusOK, gin.H{"code": CodeBadRequest, "msg": "appId, qrCode and address are required"})
		return
	}
	if s.config.AppID != "" && appID != s.config.AppID {
		c.JSON(http.StatusOK, gin.H{"code": CodeInvalidAppID, "msg": "invalid appId"})
		return
	}

	header := c.GetHeader(bridge.HeaderPayment)
	if header == "" {
		c.JSON(http.StatusPaymentRequired, bridge.DiscoveryResponse{
			Code:        bridge.CodePaymentRequired,
			Msg:         "payment required",
			TraceID:     uuid.NewString(),
			X402Version: bridge.FlexString(strconv.Itoa(bridge.X402Version)),
			Error:       "X-PAYMENT header is required",
			Accepts:     []x402.Obligation{s.obligation(c.Request.URL.Path)},
		})
		return
	}

	s.settle(c, header, address)
}

func (s *Server) obligation(resource string) x402.Obligation {
	return x402.Obligation{
		Scheme:            evm.SchemeExact,
		Network:           s.config.Network,
		MaxAmountRequired: s.maxAmount.String(),
		Resource:          resource,
		Description:       "sandbox payment",
		MimeType:          "application/json",
		PayTo:             s.config.PayTo,
		MaxTimeoutSeconds: s.config.TimeoutSeconds,
		Asset:             s.config.Asset,
		Extra: &x402.ObligationExtra{
			OrderNo: uuid.NewString(),
			Name:    s.tokenName,
			Version: s.tokenVersion,
		},
	}
}

func (s *Server) settle(c *gin.Context, header, address string) {
	raw, err := bridge.DecodeHeader(header)
	if err != nil {
		s.reject(c, CodeInvalidPay, err.Error())
		return
	}
	if err := validateEnvelopeJSON(raw); err != nil {
		s.reject(c, CodeInvalidPay, err.Error())
		return
	}

	var envelope bridge.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.reject(c, CodeInvalidPay, fmt.Sprintf("invalid envelope JSON: %v", err))
		return
	}

	if reason := s.verify(&envelope, address); reason != "" {
		s.reject(c, CodeInvalidPay, reason)
		return
	}

	if s.config.RejectMessage != "" {
		s.reject(c, s.config.RejectCode, s.config.RejectMessage)
		return
	}

	nonce := strings.ToLower(envelope.Payload.Authorization.Nonce)
	fingerprint := Fingerprint(raw)

	status, record, done := s.cache.CheckAndMark(nonce)
	switch status {
	case StatusCached:
		s.replay(c, record, fingerprint)
		return
	case StatusInFlight:
		record, err := s.cache.WaitForResult(c.Request.Context(), nonce, done)
		if err != nil || record == nil {
			s.reject(c, CodeInvalidPay, "authorization could not be settled")
			return
		}
		s.replay(c, record, fingerprint)
		return
	}

	record, err = s.newRecord(&envelope, fingerprint)
	if err != nil {
		s.cache.Fail(nonce, done)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "500", "msg": err.Error()})
		return
	}
	s.cache.Complete(nonce, record, done)

	s.logger.Info("sandbox settlement", map[string]any{
		"payer": envelope.Payload.Authorization.From,
		"value": envelope.Payload.Authorization.Value,
		"nonce": nonce,
	})
	s.write(c, record)
}

func (s *Server) replay(c *gin.Context, record *SettlementRecord, fingerprint string) {
	if record.Fingerprint != fingerprint {
		s.reject(c, CodeInvalidPay, "authorization nonce already used")
		return
	}
	s.write(c, record)
}

func (s *Server) write(c *gin.Context, record *SettlementRecord) {
	c.Header(bridge.HeaderPaymentResponse, record.AckHeader)
	c.JSON(http.StatusOK, record.Body)
}

func (s *Server) reject(c *gin.Context, code, message string) {
	s.logger.Warn("sandbox rejected payment", map[string]any{"code": code, "message": message})
	c.JSON(http.StatusOK, gin.H{"code": code, "msg": message})
}

// verify returns a rejection reason, or "" when the envelope is acceptable
func (s *Server) verify(envelope *bridge.Envelope, address string) string {
	auth := envelope.Payload.Authorization

	if envelope.Scheme != evm.SchemeExact {
		return fmt.Sprintf("unsupported scheme: %s", envelope.Scheme)
	}
	if envelope.Network != s.config.Network {
		return fmt.Sprintf("network mismatch: %s", envelope.Network)
	}
	if !strings.EqualFold(auth.From, address) {
		return "authorization payer does not match address"
	}
	if !strings.EqualFold(auth.To, s.config.PayTo) {
		return "authorization recipient does not match payTo"
	}

	value, _ := new(big.Int).SetString(auth.Value, 10)
	if value.Cmp(s.maxAmount) > 0 {
		return "authorization value exceeds maxAmountRequired"
	}

	now := s.now().Unix()
	validAfter, _ := strconv.ParseInt(auth.ValidAfter, 10, 64)
	validBefore, _ := strconv.ParseInt(auth.ValidBefore, 10, 64)
	if validBefore <= validAfter {
		return "authorization window is empty"
	}
	if now < validAfter {
		return "authorization not yet valid"
	}
	if now >= validBefore {
		return "authorization expired"
	}

	signature, err := evm.HexToBytes(envelope.Payload.Signature)
	if err != nil {
		return "invalid signature encoding"
	}
	ok, err := evm.VerifyTransferAuthorization(auth, signature, s.chainID, s.config.Asset, s.tokenName, s.tokenVersion)
	if err != nil {
		return fmt.Sprintf("signature verification failed: %v", err)
	}
	if !ok {
		return "invalid signature"
	}
	return ""
}

func (s *Server) newRecord(envelope *bridge.Envelope, fingerprint string) (*SettlementRecord, error) {
	txHash, err := evm.CreateNonce()
	if err != nil {
		return nil, err
	}
	orderNo := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
	usdAmount := x402.FormatAmount(envelope.Payload.Authorization.Value, int32(s.asset.Decimals))

	ack, err := bridge.EncodeAck(bridge.PaymentAck{
		Success:     true,
		Transaction: txHash,
		Network:     envelope.Network,
		Payer:       evm.NormalizeAddress(envelope.Payload.Authorization.From),
	})
	if err != nil {
		return nil, err
	}

	return &SettlementRecord{
		Fingerprint: fingerprint,
		AckHeader:   ack,
		Body: map[string]interface{}{
			"code": bridge.CodeSuccess,
			"msg":  "success",
			"model": gin.H{
				"num":       orderNo,
				"txHash":    txHash,
				"usdAmount": usdAmount,
				"status":    "SUCCESS",
			},
		},
	}, nil
}
