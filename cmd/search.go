package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/folio"
)

// searchCmd holds the flags for the 'search' subcommand.
type searchCmd struct {
	assetType string
	limit     int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search asset keys" }
func (*searchCmd) Usage() string {
	return `folio search [-t <stock|crypto>] <search term>

  Searches stocks on EODHD or crypto assets on CoinGecko and prints
  ready-to-use 'folio add' commands for the results.
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.assetType, "t", string(folio.Stock), "Asset type: stock or crypto")
	f.IntVar(&c.limit, "n", 10, "Maximum number of results")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	term := trimArgs(f)
	if term == "" {
		fmt.Fprintln(os.Stderr, "Error: a search term is required.")
		return subcommands.ExitUsageError
	}
	t, err := folio.ParseAssetType(c.assetType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing asset type: %v\n", err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	switch t {
	case folio.Stock:
		results, err := a.eodhd.Search(ctx, term)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching %q: %v\n", term, err)
			return subcommands.ExitFailure
		}
		for i, r := range results {
			if i == c.limit {
				break
			}
			fmt.Printf("folio add -t stock -k %s -q 1  # %s (%s, %s)\n", r.Ticker(), r.Name, r.Type, r.Currency)
		}
	case folio.Crypto:
		coins, err := a.coingecko.Search(ctx, term)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error searching %q: %v\n", term, err)
			return subcommands.ExitFailure
		}
		for i, coin := range coins {
			if i == c.limit {
				break
			}
			fmt.Printf("folio add -t crypto -k %s -q 1  # %s (%s)\n", coin.ID, coin.Name, coin.Symbol)
		}
	}
	return subcommands.ExitSuccess
}
