package payment

import (
	"context"
	"time"

	x402 "github.com/x402-foundation/qrpay"
)

// ============================================================================
// Payment Hook Context Types
// ============================================================================

// PaymentContext contains information passed to payment hooks
type PaymentContext struct {
	Ctx       context.Context
	AttemptID string
	Request   x402.PaymentRequest
	Route     Route
	Payer     string
	Timestamp time.Time
}

// PaymentResultContext contains a completed payment and its context
type PaymentResultContext struct {
	PaymentContext
	Result   Result
	Duration time.Duration
}

// PaymentFailureContext contains a failed payment and its context
type PaymentFailureContext struct {
	PaymentContext
	Stage    Stage
	Error    error
	Duration time.Duration
}

// ============================================================================
// Payment Hook Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook.
// If Abort is true, the attempt fails with the given Reason.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// BeforePaymentHook is called once the route and payer are known, before
// any settlement call. Returning Abort=true or an error fails the attempt.
type BeforePaymentHook func(PaymentContext) (*BeforeHookResult, error)

// AfterPaymentHook is called after an attempt completes.
// Any error returned is logged and does not affect the result.
type AfterPaymentHook func(PaymentResultContext) error

// OnPaymentFailureHook is called after an attempt fails.
// Any error returned is logged and does not affect the result.
type OnPaymentFailureHook func(PaymentFailureContext) error

// ============================================================================
// Hook Registration Options
// ============================================================================

// WithBeforePaymentHook registers a hook to execute before settlement starts
func WithBeforePaymentHook(hook BeforePaymentHook) Option {
	return func(o *Orchestrator) {
		o.beforeHooks = append(o.beforeHooks, hook)
	}
}

// WithAfterPaymentHook registers a hook to execute after a successful payment
func WithAfterPaymentHook(hook AfterPaymentHook) Option {
	return func(o *Orchestrator) {
		o.afterHooks = append(o.afterHooks, hook)
	}
}

// WithOnPaymentFailureHook registers a hook to execute when a payment fails
func WithOnPaymentFailureHook(hook OnPaymentFailureHook) Option {
	return func(o *Orchestrator) {
		o.failureHooks = append(o.failureHooks, hook)
	}
}

func (o *Orchestrator) runBeforeHooks(pc PaymentContext) error {
	for _, hook := range o.beforeHooks {
		result, err := hook(pc)
		if err != nil {
			return err
		}
		if result != nil && result.Abort {
			return x402.NewSettlementRejectedError(result.Reason, map[string]interface{}{"abortedBy": "hook"})
		}
	}
	return nil
}

func (o *Orchestrator) runAfterHooks(rc PaymentResultContext) {
	for _, hook := range o.afterHooks {
		if err := hook(rc); err != nil {
			o.logger.Warn("after payment hook failed", map[string]any{"attemptId": rc.AttemptID, "error": err})
		}
	}
}

func (o *Orchestrator) runFailureHooks(fc PaymentFailureContext) {
	for _, hook := range o.failureHooks {
		if err := hook(fc); err != nil {
			o.logger.Warn("payment failure hook failed", map[string]any{"attemptId": fc.AttemptID, "error": err})
		}
	}
}
