package main

import (
	"github.com/urfave/cli/v2"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/internal/sandbox"
)

var sandboxCommand = &cli.Command{
	Name:        "sandbox",
	Usage:       "Serve an emulated settlement endpoint",
	Description: "Answers discovery with a fixed obligation and settles valid authorizations without touching a chain.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Value: ":4402",
			Usage: "listen address",
		},
		&cli.StringFlag{
			Name:     "pay-to",
			Usage:    "recipient address of the obligation",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "amount",
			Value: "10000",
			Usage: "maxAmountRequired in atomic units",
		},
		&cli.StringFlag{
			Name:  "network",
			Value: "base-sepolia",
			Usage: "network key",
		},
		&cli.StringFlag{
			Name:  "asset",
			Usage: "token contract, defaults to the network's USDC",
		},
		&cli.Int64Flag{
			Name:  "timeout",
			Value: 60,
			Usage: "maxTimeoutSeconds of the obligation",
		},
		&cli.StringFlag{
			Name:  "require-app-id",
			Usage: "reject other appIds",
		},
		&cli.StringFlag{
			Name:  "reject-message",
			Usage: "reject every submission with this message",
		},
	},
	Action: runSandbox,
}

func runSandbox(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	srv, err := sandbox.New(sandbox.Config{
		Network:        x402.Network(ctx.String("network")),
		PayTo:          ctx.String("pay-to"),
		Amount:         ctx.String("amount"),
		Asset:          ctx.String("asset"),
		TimeoutSeconds: ctx.Int64("timeout"),
		AppID:          ctx.String("require-app-id"),
		RejectMessage:  ctx.String("reject-message"),
	}, sandbox.WithLogger(log))
	if err != nil {
		return err
	}

	log.Info("sandbox listening", map[string]any{"addr": ctx.String("listen")})
	return srv.Run(ctx.String("listen"))
}
