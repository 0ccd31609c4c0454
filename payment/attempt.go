package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/metrics"
)

// Attempt is the running state of one payment. It starts in Review, runs to
// Complete or Failed on Confirm, and returns to Review on Retry.
type Attempt struct {
	o       *Orchestrator
	session *Session
	request *x402.PaymentRequest
	handler EventHandler

	mu         sync.Mutex
	state      State
	stageStart time.Time
	result     *Result
}

// State returns a snapshot of the attempt
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Result returns the final result, or nil before a terminal stage
func (a *Attempt) Result() *Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil || !a.state.Stage.Terminal() {
		return nil
	}
	r := *a.result
	return &r
}

// CanConfirm reports whether Confirm is offered: the attempt is in Review and
// both the request and a payer are present
func (a *Attempt) CanConfirm() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Stage == StageReview && a.request != nil && a.session.hasPayer()
}

// Confirm drives the attempt to Complete or Failed and returns its result.
// Settlement failures are reported in the result, not as an error. ctx is
// only checked between phases; calls already in flight run to completion.
func (a *Attempt) Confirm(ctx context.Context) (*Result, error) {
	if a.request == nil || !a.session.hasPayer() {
		return nil, ErrNotConfirmable
	}
	if !a.o.acquire(a.session) {
		return nil, ErrSessionBusy
	}
	defer a.o.release(a.session)

	a.mu.Lock()
	if a.state.Stage != StageReview {
		stage := a.state.Stage
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: confirm from %s", ErrInvalidTransition, stage)
	}
	a.mu.Unlock()

	result := a.run(ctx)
	return result, nil
}

// Retry returns a failed attempt to Review with no error and zero progress.
// The next Confirm builds a new authorization.
func (a *Attempt) Retry() error {
	a.mu.Lock()
	if a.state.Stage != StageFailed {
		stage := a.state.Stage
		a.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, stage)
	}
	a.state = State{
		AttemptID: uuid.NewString(),
		Stage:     StageReview,
	}
	a.result = nil
	a.stageStart = time.Time{}
	event := a.eventLocked("Ready to retry")
	a.mu.Unlock()

	a.emit(event)
	return nil
}

func (a *Attempt) run(ctx context.Context) (result *Result) {
	start := a.o.now()
	decision := a.o.decideRoute(a.request, a.session)

	defer func() {
		if r := recover(); r != nil {
			result = a.fail(ctx, decision.route, start, fmt.Errorf("payment aborted: %v", r))
		}
	}()

	var err error
	switch decision.route {
	case RouteBridge:
		result, err = a.runBridge(ctx, decision)
	default:
		result, err = a.runFallback(ctx, decision)
	}
	if err != nil {
		return a.fail(ctx, decision.route, start, err)
	}
	return a.complete(ctx, decision.route, start, result)
}

// runBridge settles through the dialect: discover, authorize, submit
func (a *Attempt) runBridge(ctx context.Context, d routeDecision) (*Result, error) {
	callCtx := context.WithoutCancel(ctx)

	a.advance(StageChecking, 0, "Checking payment")
	signer, err := a.ensureSigner(callCtx)
	if err != nil {
		return nil, err
	}
	if err := a.o.runBeforeHooks(a.paymentContext(ctx, d.route, signer.Address())); err != nil {
		return nil, err
	}
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	flow := a.o.newFlow(signer)

	obligation, err := flow.Discover(callCtx, d.appID, d.code)
	if err != nil {
		return nil, err
	}
	a.advance(StageChecking, progressDiscovered, "Payment details received")
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	envelope, err := flow.Authorize(callCtx, obligation)
	if err != nil {
		return nil, err
	}
	a.advance(StageChecking, progressAuthorized, "Authorization signed")
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	a.advance(StageExecuting, progressSubmitting, "Submitting payment")
	outcome, err := flow.Submit(callCtx, d.appID, d.code, envelope)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Success:             true,
		SettlementReference: outcome.Reference,
		Amount:              outcome.Amount,
		Network:             string(outcome.Network),
		OrderNo:             outcome.OrderNo,
		ExplorerURL:         explorerURL(outcome.Network, outcome.Reference),
	}
	if result.OrderNo == "" && obligation.Extra != nil {
		result.OrderNo = obligation.Extra.OrderNo
	}
	return result, nil
}

// runFallback walks the generic path: balance check, bridging, execution
func (a *Attempt) runFallback(ctx context.Context, d routeDecision) (*Result, error) {
	callCtx := context.WithoutCancel(ctx)
	request := *a.request

	a.advance(StageChecking, 0, "Checking balance")
	amount, ok := x402.ParseAtomicAmount(request.MaxAmountRequired)
	if !ok {
		return nil, x402.NewPaymentError(x402.ErrCodeInvalidPayload, fmt.Sprintf("invalid amount: %s", request.MaxAmountRequired), nil)
	}
	signer, err := a.ensureSigner(callCtx)
	if err != nil {
		return nil, err
	}
	payer := signer.Address()
	if err := a.o.runBeforeHooks(a.paymentContext(ctx, d.route, payer)); err != nil {
		return nil, err
	}

	if a.o.balances != nil {
		balance, err := a.o.balances.BalanceOf(callCtx, request.Asset, payer)
		if err != nil {
			return nil, fmt.Errorf("balance check failed: %w", err)
		}
		if balance.Cmp(amount) < 0 {
			return nil, x402.NewSettlementRejectedError("insufficient balance", map[string]interface{}{
				"balance":  balance.String(),
				"required": amount.String(),
			})
		}
	}
	a.advance(StageChecking, progressBalanceChecked, "Balance confirmed")
	if err := a.pause(ctx); err != nil {
		return nil, err
	}

	a.advance(StageBridging, progressBridgeStarted, "Preparing funds")
	if a.o.bridger != nil {
		if err := a.o.bridger(callCtx, request); err != nil {
			return nil, err
		}
	}
	if err := a.pause(ctx); err != nil {
		return nil, err
	}
	a.advance(StageBridging, progressBridgeDone, "Funds ready")
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	a.advance(StageExecuting, progressExecuting, "Sending transaction")
	reference, err := a.o.executor(callCtx, request, payer)
	if err != nil {
		return nil, err
	}

	return &Result{
		Success:             true,
		SettlementReference: reference,
		Amount:              request.MaxAmountRequired,
		Network:             string(request.Network),
		ExplorerURL:         explorerURL(request.Network, reference),
	}, nil
}

// ensureSigner returns the session signer, initializing the wallet if needed
func (a *Attempt) ensureSigner(ctx context.Context) (evm.ClientEvmSigner, error) {
	if signer := a.session.signer(); signer != nil {
		return signer, nil
	}
	a.advance(StageChecking, progressWalletInit, "Initializing wallet")
	signer, err := a.session.initWallet(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet initialization failed: %w", err)
	}
	return signer, nil
}

func (a *Attempt) complete(ctx context.Context, route Route, start time.Time, result *Result) *Result {
	a.mu.Lock()
	a.result = result
	a.state.Reference = result.SettlementReference
	attemptID := a.state.AttemptID
	a.mu.Unlock()
	a.advance(StageComplete, progressComplete, "Payment complete")

	a.o.metrics.IncCounter(metrics.PaymentAttempts, map[string]string{"dialect": string(route), "outcome": "success"})
	a.o.logger.Info("payment complete", map[string]any{
		"attemptId": attemptID,
		"route":     route,
		"reference": result.SettlementReference,
		"network":   result.Network,
	})
	a.o.runAfterHooks(PaymentResultContext{
		PaymentContext: a.paymentContext(ctx, route, ""),
		Result:         *result,
		Duration:       a.o.now().Sub(start),
	})
	return result
}

func (a *Attempt) fail(ctx context.Context, route Route, start time.Time, err error) *Result {
	message := x402.ErrorMessage(err)

	a.mu.Lock()
	failedAt := a.state.Stage
	a.observeStageLocked()
	a.state.Stage = StageFailed
	a.state.Progress = 0
	a.state.Error = message
	a.result = &Result{
		Success: false,
		Error:   message,
		Amount:  a.request.MaxAmountRequired,
		Network: string(a.request.Network),
	}
	result := *a.result
	event := a.eventLocked(message)
	a.mu.Unlock()
	a.emit(event)

	a.o.metrics.IncCounter(metrics.PaymentAttempts, map[string]string{"dialect": string(route), "outcome": "failed"})
	a.o.logger.Error("payment failed", map[string]any{
		"attemptId": event.AttemptID,
		"route":     route,
		"stage":     failedAt,
		"error":     err,
	})
	a.o.runFailureHooks(PaymentFailureContext{
		PaymentContext: a.paymentContext(ctx, route, ""),
		Stage:          failedAt,
		Error:          err,
		Duration:       a.o.now().Sub(start),
	})
	return &result
}

// advance moves to stage at progress. Progress never decreases while the
// attempt is running.
func (a *Attempt) advance(stage Stage, progress int, message string) {
	a.mu.Lock()
	if stage != a.state.Stage {
		a.observeStageLocked()
		a.state.Stage = stage
	}
	if progress > a.state.Progress {
		a.state.Progress = progress
	}
	event := a.eventLocked(message)
	a.mu.Unlock()

	a.o.logger.Debug("payment stage", map[string]any{
		"attemptId": event.AttemptID,
		"stage":     event.Stage,
		"progress":  event.Progress,
	})
	a.emit(event)
}

func (a *Attempt) observeStageLocked() {
	now := a.o.now()
	if !a.stageStart.IsZero() && a.state.Stage != StageReview {
		a.o.metrics.ObserveLatency(metrics.StageDuration, now.Sub(a.stageStart), map[string]string{"stage": string(a.state.Stage)})
	}
	a.stageStart = now
}

func (a *Attempt) eventLocked(message string) Event {
	return Event{
		AttemptID: a.state.AttemptID,
		Stage:     a.state.Stage,
		Progress:  a.state.Progress,
		Message:   message,
		Time:      a.o.now(),
	}
}

func (a *Attempt) emit(event Event) {
	if a.handler != nil {
		a.handler(event)
	}
}

func (a *Attempt) paymentContext(ctx context.Context, route Route, payer string) PaymentContext {
	if payer == "" {
		if signer := a.session.signer(); signer != nil {
			payer = signer.Address()
		}
	}
	return PaymentContext{
		Ctx:       ctx,
		AttemptID: a.State().AttemptID,
		Request:   *a.request,
		Route:     route,
		Payer:     payer,
		Timestamp: a.o.now(),
	}
}

// pause waits FallbackStepDelay; cancellation ends the wait early
func (a *Attempt) pause(ctx context.Context) error {
	if a.o.config.FallbackStepDelay <= 0 {
		return checkCancelled(ctx)
	}
	timer := time.NewTimer(a.o.config.FallbackStepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return checkCancelled(ctx)
	case <-ctx.Done():
		return ErrCancelled
	}
}

func checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// explorerURL links transaction hashes on known networks and is empty otherwise
func explorerURL(network x402.Network, reference string) string {
	raw, err := evm.HexToBytes(reference)
	if err != nil || len(raw) != 32 {
		return ""
	}
	url, err := evm.ExplorerTxURL(network, reference)
	if err != nil {
		return ""
	}
	return url
}
