// Package cmd implements the CLI application to manage and value a portfolio
// of stocks and crypto assets.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/etnz/folio"
	"github.com/etnz/folio/advisor"
	"github.com/etnz/folio/coingecko"
	"github.com/etnz/folio/config"
	"github.com/etnz/folio/date"
	"github.com/etnz/folio/eodhd"
	"github.com/etnz/folio/pacer"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/store"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&addCmd{}, "holdings")
	c.Register(&sellCmd{}, "holdings")
	c.Register(&rmCmd{}, "holdings")
	c.Register(&listCmd{}, "holdings")
	c.Register(&searchCmd{}, "holdings")

	c.Register(&valueCmd{}, "reports")
	c.Register(&chartCmd{}, "reports")
	c.Register(&adviseCmd{}, "reports")

	c.Register(&serveCmd{}, "services")
	c.Register(&watchCmd{}, "services")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", config.DefaultFile, "Path to the TOML configuration file")
var userFlag = flag.String("user", "", "User whose holdings are managed. Defaults to the configured user.")

// app is what every command needs, built from the configuration.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	user      string
	store     store.Store
	eodhd     *eodhd.Client
	coingecko *coingecko.Client
}

// openApp loads the configuration and opens the store.
func openApp() (*app, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:  cfg,
		log:  config.NewLogger(cfg.Log.Level, os.Stderr),
		user: cfg.User,
	}
	if *userFlag != "" {
		a.user = *userFlag
	}
	if a.store, err = openStore(cfg.Store); err != nil {
		return nil, err
	}

	ec := cfg.Provider.EODHD
	a.eodhd = eodhd.New(ec.APIKey,
		eodhd.WithBaseURL(ec.BaseURL),
		eodhd.WithHTTPClient(httpClient(ec)),
		eodhd.WithCacheDir(ec.CacheDir),
		eodhd.WithLogger(a.log.With().Str("provider", "eodhd").Logger()),
	)
	cc := cfg.Provider.CoinGecko
	copts := []coingecko.Option{
		coingecko.WithAPIKey(cc.APIKey),
		coingecko.WithBaseURL(cc.BaseURL),
		coingecko.WithCurrency(strings.ToLower(cfg.Currency)),
		coingecko.WithHTTPClient(httpClient(cc)),
		coingecko.WithLogger(a.log.With().Str("provider", "coingecko").Logger()),
	}
	if cc.CacheDir != "" {
		copts = append(copts, coingecko.WithCoinListFile(filepath.Join(cc.CacheDir, "coingecko-coins.msgpack")))
	}
	a.coingecko = coingecko.New(copts...)
	return a, nil
}

func openStore(c config.StoreConfig) (store.Store, error) {
	switch c.Kind {
	case "", "file":
		return store.NewFile(c.Path)
	case "sqlite":
		if dir := filepath.Dir(c.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cannot create store directory: %w", err)
			}
		}
		return store.OpenSQLite(c.Path)
	default:
		return nil, fmt.Errorf("unknown store kind %q, want file or sqlite", c.Kind)
	}
}

func httpClient(c config.ProviderConfig) *http.Client {
	return &http.Client{Timeout: c.GetTimeout()}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}

// fetcher returns a Fetcher pricing stocks with EODHD and crypto assets with
// CoinGecko, each paced as configured.
func (a *app) fetcher() *folio.Fetcher {
	return folio.NewFetcher(
		folio.WithProvider(folio.Stock, a.eodhd, pacer.New(a.cfg.Provider.EODHD.GetInterval())),
		folio.WithProvider(folio.Crypto, a.coingecko, pacer.New(a.cfg.Provider.CoinGecko.GetInterval())),
		folio.WithFetchLogger(a.log),
	)
}

func (a *app) valuator(p date.Period, opts ...folio.ValuatorOption) *folio.Valuator {
	opts = append([]folio.ValuatorOption{folio.WithPeriod(p), folio.WithLogger(a.log)}, opts...)
	return folio.NewValuator(a.fetcher(), opts...)
}

// period parses s, or the configured period when s is empty.
func (a *app) period(s string) (date.Period, error) {
	if s == "" {
		s = a.cfg.Period
	}
	return date.ParsePeriod(s)
}

func (a *app) fx() renderer.FX {
	return renderer.FX{Base: a.cfg.Currency, Currency: a.cfg.FX.Currency, Rate: a.cfg.FX.Rate}
}

// value runs one valuation cycle over the user holdings.
func (a *app) value(ctx context.Context, p date.Period) (*renderer.Portfolio, error) {
	holdings, err := a.store.List(ctx, a.user)
	if err != nil {
		return nil, err
	}
	v := a.valuator(p)
	v.SetHoldings(holdings)
	v.Refresh(ctx)
	return renderer.NewPortfolio(a.user, v.Snapshot(), a.fx()), nil
}

func (a *app) advisor(ctx context.Context) *advisor.Advisor {
	opts := []advisor.Option{advisor.WithLogger(a.log)}
	if a.cfg.Advisor.APIKey != "" {
		g, err := advisor.NewGemini(ctx, a.cfg.Advisor.APIKey, a.cfg.Advisor.Model)
		if err != nil {
			a.log.Warn().Err(err).Msg("Gemini unavailable")
		} else {
			opts = append(opts, advisor.WithAsker(g))
		}
	}
	return advisor.New(opts...)
}

func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// trimArgs joins the positional arguments of f.
func trimArgs(f *flag.FlagSet) string {
	return strings.TrimSpace(strings.Join(f.Args(), " "))
}
