package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/etnz/folio/renderer"
)

// valueCmd holds the flags for the 'value' subcommand.
type valueCmd struct {
	period string
	html   string
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "value the portfolio over a period" }
func (*valueCmd) Usage() string {
	return `folio value [-period <week|month|quarter|year>] [-html <file>]

  Fetches the prices of the holdings and displays the portfolio value, its
  evolution over the period and the value of each holding.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period to report on. Defaults to the configured period.")
	f.StringVar(&c.html, "html", "", "Write the report as an HTML page to this file instead of the terminal")
}

func (c *valueCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.period(c.period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing period: %v\n", err)
		return subcommands.ExitUsageError
	}
	portfolio, err := a.value(ctx, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	md := renderer.RenderPortfolio(portfolio)

	if c.html == "" {
		printMarkdown(md)
		return subcommands.ExitSuccess
	}
	page, err := renderer.HTML(a.user, md)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering html: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.html, []byte(page), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.html, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Report written to %s\n", c.html)
	return subcommands.ExitSuccess
}

// chartCmd holds the flags for the 'chart' subcommand.
type chartCmd struct {
	period string
	output string
}

func (*chartCmd) Name() string     { return "chart" }
func (*chartCmd) Synopsis() string { return "draw the portfolio value as a PNG chart" }
func (*chartCmd) Usage() string {
	return `folio chart [-period <week|month|quarter|year>] [-o <file>]

  Draws the daily value of the portfolio over the period.
`
}

func (c *chartCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period to chart. Defaults to the configured period.")
	f.StringVar(&c.output, "o", "portfolio.png", "Output file")
}

func (c *chartCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.period(c.period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing period: %v\n", err)
		return subcommands.ExitUsageError
	}
	portfolio, err := a.value(ctx, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	png, err := renderer.Chart(portfolio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error drawing chart: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(c.output, png, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", c.output, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Chart written to %s\n", c.output)
	return subcommands.ExitSuccess
}

// adviseCmd holds the flags for the 'advise' subcommand.
type adviseCmd struct {
	period string
}

func (*adviseCmd) Name() string     { return "advise" }
func (*adviseCmd) Synopsis() string { return "suggest savings and budget actions" }
func (*adviseCmd) Usage() string {
	return `folio advise [-period <week|month|quarter|year>]

  Values the portfolio and prints savings and budget suggestions. Gemini is
  asked when GEMINI_API_KEY or [advisor] api_key is set.
`
}

func (c *adviseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period to analyze. Defaults to the configured period.")
}

func (c *adviseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening folio: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	p, err := a.period(c.period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing period: %v\n", err)
		return subcommands.ExitUsageError
	}
	portfolio, err := a.value(ctx, p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error valuing portfolio: %v\n", err)
		return subcommands.ExitFailure
	}
	printMarkdown(a.advisor(ctx).Advise(ctx, portfolio))
	return subcommands.ExitSuccess
}
