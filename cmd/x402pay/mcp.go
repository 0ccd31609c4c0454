package main

import (
	"github.com/urfave/cli/v2"

	"github.com/x402-foundation/qrpay/mcp"
	"github.com/x402-foundation/qrpay/payment"
)

var mcpCommand = &cli.Command{
	Name:  "mcp",
	Usage: "Serve payment tools over MCP on stdio",
	Flags: []cli.Flag{
		privateKeyFlag,
	},
	Action: runMCP,
}

func runMCP(ctx *cli.Context) error {
	log, err := newLogger(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	recorder, err := newRecorder(ctx, log)
	if err != nil {
		return err
	}

	// Without a usable wallet the decode and encode tools still work
	var session *payment.Session
	if s, err := newSession(ctx, log); err == nil {
		session = s
	} else {
		log.Warn("payments disabled", map[string]any{"error": err})
	}

	runCtx, stop := signalContext(ctx)
	defer stop()

	srv := mcp.NewServer(newOrchestrator(ctx, log, recorder), session, mcp.WithLogger(log))
	return srv.Run(runCtx)
}
