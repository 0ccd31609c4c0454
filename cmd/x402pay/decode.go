package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

var decodeCommand = &cli.Command{
	Name:      "decode",
	Usage:     "Print the fields of an x402:// payment request",
	ArgsUsage: "<uri>",
	Action:    decodeRequest,
}

func decodeRequest(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one payment request URI")
	}

	req, err := x402.DecodePaymentRequest(ctx.Args().First())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	w := ctx.App.Writer
	fmt.Fprintln(w, string(data))

	if asset, err := evm.GetAssetInfo(req.Network, req.Asset); err == nil {
		fmt.Fprintf(w, "\nPay %s %s to %s on %s\n",
			x402.FormatAmount(req.MaxAmountRequired, int32(asset.Decimals)),
			asset.Symbol,
			x402.FormatAddress(req.PayTo, 4),
			req.Network,
		)
	}
	return nil
}
