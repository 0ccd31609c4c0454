package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
	"github.com/x402-foundation/qrpay/payment"
)

var payCommand = &cli.Command{
	Name:      "pay",
	Usage:     "Pay an x402:// payment request",
	ArgsUsage: "<uri>",
	Flags: []cli.Flag{
		privateKeyFlag,
		&cli.BoolFlag{
			Name:  "check-balance",
			Usage: "read the payer balance over RPC before a fallback payment",
		},
		&cli.DurationFlag{
			Name:  "step-delay",
			Usage: "pause between fallback checkpoints",
		},
	},
	Action: payRequest,
}

func payRequest(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one payment request URI")
	}
	req, err := x402.DecodePaymentRequest(ctx.Args().First())
	if err != nil {
		return err
	}

	log, err := newLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	recorder, err := newRecorder(ctx, log)
	if err != nil {
		return err
	}

	runCtx, stop := signalContext(ctx)
	defer stop()

	var opts []payment.Option
	if ctx.Bool("check-balance") {
		reader, err := evm.DialBalanceReader(runCtx, req.Network)
		if err != nil {
			return err
		}
		defer reader.Close()
		opts = append(opts, payment.WithBalanceChecker(reader))
	}

	session, err := newSession(ctx, log)
	if err != nil {
		return err
	}
	orchestrator := newOrchestrator(ctx, log, recorder, opts...)

	w := ctx.App.Writer
	result, err := orchestrator.Pay(runCtx, session, req, func(e payment.Event) {
		fmt.Fprintf(w, "[%-9s] %3d%%  %s\n", e.Stage, e.Progress, e.Message)
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))

	if !result.Success {
		return errors.New(result.Error)
	}
	return nil
}
