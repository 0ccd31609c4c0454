package payment

import (
	"time"
)

// Stage is one named phase of a payment attempt
type Stage string

const (
	StageReview    Stage = "review"
	StageChecking  Stage = "checking"
	StageBridging  Stage = "bridging"
	StageExecuting Stage = "executing"
	StageComplete  Stage = "complete"
	StageFailed    Stage = "failed"
)

// Terminal reports whether the attempt is finished in this stage
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// Route is the settlement path chosen for an attempt
type Route string

const (
	RouteBridge   Route = "bridge"
	RouteFallback Route = "fallback"
)

// Progress checkpoints of the bridge route
const (
	progressWalletInit = 5
	progressDiscovered = 20
	progressAuthorized = 40
	progressSubmitting = 70
	progressComplete   = 100
)

// Progress checkpoints of the fallback route
const (
	progressBalanceChecked = 25
	progressBridgeStarted  = 40
	progressBridgeDone     = 70
	progressExecuting      = 85
)

// Event is emitted at every checkpoint of an attempt. Handlers run on the
// goroutine driving the attempt and must not block.
type Event struct {
	AttemptID string    `json:"attemptId"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Time      time.Time `json:"time"`
}

// EventHandler receives progress events
type EventHandler func(Event)

// State is a snapshot of an attempt
type State struct {
	AttemptID string `json:"attemptId"`
	Stage     Stage  `json:"stage"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Result is handed back once an attempt reaches Complete or Failed
type Result struct {
	Success             bool   `json:"success"`
	SettlementReference string `json:"settlementReference,omitempty"`
	Amount              string `json:"amount,omitempty"`
	Network             string `json:"network,omitempty"`
	Error               string `json:"error,omitempty"`
	ExplorerURL         string `json:"explorerUrl,omitempty"`
	OrderNo             string `json:"orderNo,omitempty"`
}
