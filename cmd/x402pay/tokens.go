package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	x402 "github.com/x402-foundation/qrpay"
	"github.com/x402-foundation/qrpay/mechanisms/evm"
)

var tokensCommand = &cli.Command{
	Name:  "tokens",
	Usage: "List registered networks and tokens",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "network",
			Usage: "only list tokens on this network",
		},
		&cli.BoolFlag{
			Name:  "networks",
			Usage: "list networks instead of tokens",
		},
	},
	Action: listTokens,
}

func listTokens(ctx *cli.Context) error {
	if ctx.Bool("networks") {
		return listNetworks(ctx)
	}

	filter := ctx.String("network")
	if filter != "" {
		if _, err := evm.ResolveNetwork(x402.Network(filter)); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNETWORK\tCHAIN\tDECIMALS\tADDRESS")
	for _, token := range evm.ListTokens() {
		if filter != "" && token.Network != filter {
			continue
		}
		chainID, err := evm.GetChainID(x402.Network(token.Network))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			token.Symbol, token.Network, chainID, token.Asset.Decimals, token.Asset.Address)
	}
	return w.Flush()
}

func listNetworks(ctx *cli.Context) error {
	w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NETWORK\tCHAIN\tTESTNET\tEXPLORER")
	for _, name := range evm.Networks() {
		config, err := evm.ResolveNetwork(x402.Network(name))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", name, config.ChainID, config.Testnet, config.ExplorerURL)
	}
	return w.Flush()
}
