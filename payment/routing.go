package payment

import (
	"strings"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/bridge"
)

// routeDecision is the outcome of routing one request
type routeDecision struct {
	route Route
	appID string
	code  string
}

// decideRoute picks the settlement dialect when the request is flagged for it
// and both a code and a payer are available. The three flags are OR'ed.
func (o *Orchestrator) decideRoute(request *x402.PaymentRequest, session *Session) routeDecision {
	byProvider := request.Metadata.ProviderIs(bridge.ProviderName)
	byResource := strings.Contains(strings.ToLower(request.Resource), bridge.ProviderName)
	flagged := byProvider || byResource || o.config.ForceDialect

	if request.Metadata != nil && request.Metadata.Provider != "" && !byProvider && byResource {
		o.logger.Warn("payment request provider disagrees with resource", map[string]any{
			"provider": request.Metadata.Provider,
			"resource": request.Resource,
		})
	}

	d := routeDecision{
		route: RouteFallback,
		appID: resolveAppID(request, o.config.DefaultAppID),
		code:  resolveCode(request),
	}
	if flagged && d.code != "" && session.hasPayer() {
		d.route = RouteBridge
	}

	o.logger.Info("payment routed", map[string]any{
		"route":      d.route,
		"byProvider": byProvider,
		"byResource": byResource,
		"forced":     o.config.ForceDialect,
		"hasCode":    d.code != "",
	})
	return d
}

func resolveAppID(request *x402.PaymentRequest, fallback string) string {
	if request.Metadata != nil && request.Metadata.AppID != "" {
		return request.Metadata.AppID
	}
	if fallback != "" {
		return fallback
	}
	return bridge.DefaultAppID
}

func resolveCode(request *x402.PaymentRequest) string {
	if request.Metadata != nil && request.Metadata.QRCode != "" {
		return request.Metadata.QRCode
	}
	return request.Resource
}
