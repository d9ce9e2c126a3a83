package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/renderer"
)

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	assetType string
	key       string
	quantity  string
	date      string
	price     float64
	note      string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a holding" }
func (*addCmd) Usage() string {
	return `folio add -t <stock|crypto> -k <asset key> -q <quantity> [-d <date>] [-p <price>] [-n <note>]

  Adds a holding. Stocks are keyed by their EODHD ticker (AAPL.US), crypto
  assets by their CoinGecko id (bitcoin). Use 'folio search' to find keys.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.assetType, "t", string(folio.Stock), "Asset type: stock or crypto")
	f.StringVar(&c.key, "k", "", "Asset key")
	f.StringVar(&c.quantity, "q", "", "Quantity held")
	f.StringVar(&c.date, "d", "", "Purchase date. Defaults to now.")
	f.Float64Var(&c.price, "p", 0, "Purchase price per unit, in the provider currency")
	f.StringVar(&c.note, "n", "", "Free text note")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	t, err := folio.ParseAssetType(c.assetType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing asset type: %v\n", err)
		return subcommands.ExitUsageError
	}
	q, err := folio.ParseQuantity(c.quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity %q: %v\n", c.quantity, err)
		return subcommands.ExitUsageError
	}
	purchased := time.Now().UTC()
	if c.date != "" {
		d, err := date.Parse(c.date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date: %v\n", err)
			return subcommands.ExitUsageError
		}
		purchased = d.Time()
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	h, err := a.store.Add(ctx, a.user, folio.Holding{
		Type:          t,
		AssetKey:      c.key,
		Quantity:      q,
		Purchased:     purchased,
		PurchasePrice: c.price,
		Note:          c.note,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error adding holding: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Added %s %s %s as %s\n", h.Quantity, h.Type, h.AssetKey, h.ID)
	return subcommands.ExitSuccess
}

// sellCmd holds the flags for the 'sell' subcommand.
type sellCmd struct {
	quantity string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "sell part of a holding" }
func (*sellCmd) Usage() string {
	return `folio sell -q <quantity> <holding id>

  Reduces the quantity of a holding. Selling everything removes it.
`
}

func (c *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.quantity, "q", "", "Quantity sold")
}

func (c *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: a holding id is required.")
		return subcommands.ExitUsageError
	}
	q, err := folio.ParseQuantity(c.quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing quantity %q: %v\n", c.quantity, err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	h, deleted, err := a.store.Reduce(ctx, a.user, f.Arg(0), q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error selling %s: %v\n", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	if deleted {
		fmt.Printf("Sold all of %s, holding removed\n", f.Arg(0))
	} else {
		fmt.Printf("Sold %s, %s %s left\n", q, h.Quantity, h.AssetKey)
	}
	return subcommands.ExitSuccess
}

// rmCmd implements the 'rm' subcommand.
type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "remove holdings" }
func (*rmCmd) Usage() string {
	return `folio rm <holding id>...

  Removes holdings.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (*rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one holding id is required.")
		return subcommands.ExitUsageError
	}
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	status := subcommands.ExitSuccess
	for _, id := range f.Args() {
		if err := a.store.Delete(ctx, a.user, id); err != nil {
			fmt.Fprintf(os.Stderr, "Error removing %s: %v\n", id, err)
			status = subcommands.ExitFailure
		}
	}
	return status
}

// listCmd implements the 'list' subcommand.
type listCmd struct{}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list holdings as stored" }
func (*listCmd) Usage() string {
	return `folio list

  Lists the holdings with their id, without fetching any price.
`
}

func (*listCmd) SetFlags(*flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	holdings, err := a.store.List(ctx, a.user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RenderHoldings(holdings))
	return subcommands.ExitSuccess
}
