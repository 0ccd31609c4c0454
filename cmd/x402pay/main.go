package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/x402-foundation/qrpay/bridge"
	"github.com/x402-foundation/qrpay/logger"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/metrics"
	"github.com/x402-foundation/qrpay/payment"
	evmsigners "github.com/x402-foundation/qrpay/signers/evm"
)

func main() {
	// A missing .env is fine; flags and the environment still apply.
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "x402pay"
	app.Usage = "Encode, decode and pay x402 payment requests"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "debug, info, warn or error",
			EnvVars: []string{"X402_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "env",
			Value:   string(bridge.EnvironmentSandbox),
			Usage:   "settlement environment: sandbox or production",
			EnvVars: []string{"X402_ENV"},
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "settlement endpoint, overrides --env",
			EnvVars: []string{"X402_BASE_URL"},
		},
		&cli.StringFlag{
			Name:    "app-id",
			Usage:   "appId used when a request does not carry one",
			EnvVars: []string{"X402_APP_ID"},
		},
		&cli.BoolFlag{
			Name:    "force-dialect",
			Usage:   "route every request with a code through the settlement dialect",
			EnvVars: []string{"X402_FORCE_DIALECT"},
		},
		&cli.StringFlag{
			Name:    "metrics-addr",
			Usage:   "serve Prometheus metrics on this address",
			EnvVars: []string{"X402_METRICS_ADDR"},
		},
	}
	app.Commands = []*cli.Command{
		encodeCommand,
		decodeCommand,
		tokensCommand,
		payCommand,
		sandboxCommand,
		mcpCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[x402pay] %v\n", err)
	os.Exit(1)
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(ctx *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
}

func newLogger(ctx *cli.Context) (*logger.ZapLogger, error) {
	return logger.NewZapLogger(ctx.String("log-level"))
}

// newRecorder returns a Prometheus recorder when --metrics-addr is set and a
// no-op recorder otherwise
func newRecorder(ctx *cli.Context, log logger.Logger) (metrics.Recorder, error) {
	addr := ctx.String("metrics-addr")
	if addr == "" {
		return metrics.NoopRecorder{}, nil
	}

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", map[string]any{"addr": addr, "error": err})
		}
	}()
	log.Info("serving metrics", map[string]any{"addr": addr})
	return recorder, nil
}

func bridgeConfig(ctx *cli.Context) bridge.Config {
	baseURL := ctx.String("base-url")
	if baseURL == "" {
		baseURL = bridge.Environment(ctx.String("env")).BaseURL()
	}
	return bridge.Config{BaseURL: baseURL}
}

func newOrchestrator(ctx *cli.Context, log logger.Logger, recorder metrics.Recorder, opts ...payment.Option) *payment.Orchestrator {
	config := payment.Config{
		ForceDialect:      ctx.Bool("force-dialect"),
		DefaultAppID:      ctx.String("app-id"),
		FallbackStepDelay: ctx.Duration("step-delay"),
		Bridge:            bridgeConfig(ctx),
	}
	opts = append([]payment.Option{
		payment.WithLogger(log),
		payment.WithMetrics(recorder),
	}, opts...)
	return payment.New(config, opts...)
}

// newSession builds the payer session from --private-key. Outside production
// a missing key falls back to a throwaway key.
func newSession(ctx *cli.Context, log logger.Logger) (*payment.Session, error) {
	key := ctx.String("private-key")
	if key != "" {
		signer, err := evmsigners.NewClientSignerFromPrivateKey(key)
		if err != nil {
			return nil, err
		}
		return payment.NewSession(signer), nil
	}

	if bridge.Environment(ctx.String("env")) == bridge.EnvironmentProduction {
		return nil, errors.New("EVM_PRIVATE_KEY is required in production")
	}
	return payment.NewLazySession(func(context.Context) (evm.ClientEvmSigner, error) {
		signer, err := evmsigners.NewEphemeralClientSigner()
		if err != nil {
			return nil, err
		}
		log.Warn("using an ephemeral wallet", map[string]any{"address": signer.Address()})
		return signer, nil
	}), nil
}

var privateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex private key of the payer",
	EnvVars: []string{"EVM_PRIVATE_KEY"},
}
