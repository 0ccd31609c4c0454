package payment

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/bridge"
	"github.com/x402-foundation/qrpay/logger"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/metrics"
)

var (
	// ErrNotConfirmable is returned when the request or the payer is missing
	ErrNotConfirmable = errors.New("payment request and payer are required")

	// ErrSessionBusy is returned when the session already has a running attempt
	ErrSessionBusy = errors.New("another payment is in progress for this session")

	// ErrInvalidTransition is returned for confirm outside Review or retry outside Failed
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrCancelled is the failure recorded when the caller cancels between phases
	ErrCancelled = errors.New("payment cancelled")
)

// SettlementFlow is the three-phase exchange of the settlement dialect.
// *bridge.Client implements it.
type SettlementFlow interface {
	Discover(ctx context.Context, appID, code string) (x402.Obligation, error)
	Authorize(ctx context.Context, obligation x402.Obligation, opts ...evm.BuildOption) (*bridge.Envelope, error)
	Submit(ctx context.Context, appID, code string, envelope *bridge.Envelope) (*x402.SettlementOutcome, error)
}

// FlowFactory creates a settlement flow bound to one payer
type FlowFactory func(signer evm.ClientEvmSigner) SettlementFlow

// BalanceChecker reads the payer's balance of an asset. *evm.BalanceReader implements it.
type BalanceChecker interface {
	BalanceOf(ctx context.Context, asset string, owner string) (*big.Int, error)
}

// Bridger moves funds onto the request's network before execution
type Bridger func(ctx context.Context, request x402.PaymentRequest) error

// Executor performs the fallback transfer and returns its reference
type Executor func(ctx context.Context, request x402.PaymentRequest, payer string) (string, error)

// Config configures an Orchestrator
type Config struct {
	// ForceDialect routes every request with a code through the settlement dialect
	ForceDialect bool
	// DefaultAppID is used when the request metadata carries no appId
	DefaultAppID string
	// FallbackStepDelay paces the fallback checkpoints
	FallbackStepDelay time.Duration
	// Bridge configures the default settlement client
	Bridge bridge.Config
}

// Orchestrator sequences payment attempts through the stage machine
type Orchestrator struct {
	config   Config
	newFlow  FlowFactory
	balances BalanceChecker
	bridger  Bridger
	executor Executor
	logger   logger.Logger
	metrics  metrics.Recorder
	now      func() time.Time

	beforeHooks  []BeforePaymentHook
	afterHooks   []AfterPaymentHook
	failureHooks []OnPaymentFailureHook

	mu   sync.Mutex
	busy map[*Session]struct{}
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger.OrNoop(l)
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics.OrNoop(r)
	}
}

// WithFlowFactory replaces the settlement client used by the dialect route
func WithFlowFactory(factory FlowFactory) Option {
	return func(o *Orchestrator) {
		o.newFlow = factory
	}
}

// WithBalanceChecker enables the on-chain balance check of the fallback route
func WithBalanceChecker(checker BalanceChecker) Option {
	return func(o *Orchestrator) {
		o.balances = checker
	}
}

// WithBridger sets the hook run during the Bridging stage
func WithBridger(bridger Bridger) Option {
	return func(o *Orchestrator) {
		o.bridger = bridger
	}
}

// WithExecutor replaces the fallback transfer
func WithExecutor(executor Executor) Option {
	return func(o *Orchestrator) {
		o.executor = executor
	}
}

// New creates an orchestrator
func New(config Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   config,
		executor: simulateTransfer,
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		now:      time.Now,
		busy:     make(map[*Session]struct{}),
	}
	o.newFlow = o.bridgeClient
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) bridgeClient(signer evm.ClientEvmSigner) SettlementFlow {
	return bridge.NewClient(o.config.Bridge, signer,
		bridge.WithLogger(o.logger),
		bridge.WithMetrics(o.metrics),
	)
}

// NewAttempt creates an attempt in Review. handler may be nil.
func (o *Orchestrator) NewAttempt(session *Session, request *x402.PaymentRequest, handler EventHandler) *Attempt {
	return &Attempt{
		o:       o,
		session: session,
		request: request,
		handler: handler,
		state: State{
			AttemptID: uuid.NewString(),
			Stage:     StageReview,
		},
	}
}

// Pay creates an attempt and confirms it
func (o *Orchestrator) Pay(ctx context.Context, session *Session, request *x402.PaymentRequest, handler EventHandler) (*Result, error) {
	return o.NewAttempt(session, request, handler).Confirm(ctx)
}

func (o *Orchestrator) acquire(session *Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.busy[session]; running {
		return false
	}
	o.busy[session] = struct{}{}
	return true
}

func (o *Orchestrator) release(session *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.busy, session)
}

// simulateTransfer stands in for broadcasting, which this module never does
func simulateTransfer(_ context.Context, _ x402.PaymentRequest, _ string) (string, error) {
	return evm.CreateNonce()
}
