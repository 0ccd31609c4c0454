package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

var encodeCommand = &cli.Command{
	Name:  "encode",
	Usage: "Build an x402:// payment request",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "pay-to",
			Usage:    "recipient address",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "network",
			Value: "base",
			Usage: "network key",
		},
		&cli.StringFlag{
			Name:  "token",
			Value: evm.SymbolUSDC,
			Usage: "token symbol, used when --asset is empty",
		},
		&cli.StringFlag{
			Name:  "asset",
			Usage: "token contract address",
		},
		&cli.StringFlag{
			Name:  "amount",
			Usage: "amount in display units, e.g. 1.25",
		},
		&cli.StringFlag{
			Name:  "atomic-amount",
			Usage: "amount in atomic units, overrides --amount",
		},
		&cli.StringFlag{
			Name:  "resource",
			Usage: "unique resource identifier",
		},
		&cli.StringFlag{
			Name:  "description",
			Usage: "free text shown to the payer",
		},
		&cli.StringFlag{
			Name:  "provider",
			Usage: "settlement provider marker",
		},
		&cli.StringFlag{
			Name:  "merchant-app-id",
			Usage: "appId carried in metadata",
		},
		&cli.StringFlag{
			Name:  "qr-code",
			Usage: "provider code carried in metadata",
		},
	},
	Action: encodeRequest,
}

func encodeRequest(ctx *cli.Context) error {
	network := x402.Network(ctx.String("network"))
	if _, err := evm.ResolveNetwork(network); err != nil {
		return err
	}

	asset, err := evm.ResolveToken(ctx.String("token"), network)
	if addr := ctx.String("asset"); addr != "" {
		asset, err = evm.GetAssetInfo(network, addr)
	}
	if err != nil {
		return err
	}

	amount := ctx.String("atomic-amount")
	if amount == "" {
		display := ctx.String("amount")
		if display == "" {
			return fmt.Errorf("missing '--amount' or '--atomic-amount' flag")
		}
		amount, err = x402.ToAtomicAmount(display, int32(asset.Decimals))
		if err != nil {
			return err
		}
	}

	req := x402.PaymentRequest{
		MaxAmountRequired: amount,
		Resource:          ctx.String("resource"),
		PayTo:             ctx.String("pay-to"),
		Asset:             asset.Address,
		Network:           network,
		Description:       ctx.String("description"),
	}
	if ctx.IsSet("provider") || ctx.IsSet("merchant-app-id") || ctx.IsSet("qr-code") {
		req.Metadata = &x402.Metadata{
			Provider: ctx.String("provider"),
			AppID:    ctx.String("merchant-app-id"),
			QRCode:   ctx.String("qr-code"),
		}
	}

	uri, err := x402.EncodePaymentRequest(req)
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, uri)
	return nil
}
