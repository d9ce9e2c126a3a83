package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/google/subcommands"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/etnz/folio"
	"github.com/etnz/folio/renderer"
	"github.com/etnz/folio/server"
)

// scheduler runs jobs on cron schedules.
type scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func newScheduler(log zerolog.Logger) *scheduler {
	return &scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// add runs job on schedule. An empty schedule is ignored.
func (s *scheduler) add(schedule, name string, job func()) error {
	if schedule == "" {
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", name).Msg("running job")
		job()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	s.log.Info().Str("schedule", schedule).Str("job", name).Msg("job registered")
	return nil
}

func (s *scheduler) Start() { s.cron.Start() }

func (s *scheduler) Stop() { <-s.cron.Stop().Done() }

// holdingEvents feeds the current holdings of the user, then every change
// made to them, until ctx is done.
func (a *app) holdingEvents(ctx context.Context) (<-chan folio.Event, error) {
	holdings, err := a.store.List(ctx, a.user)
	if err != nil {
		return nil, err
	}
	changes, stop := a.store.Watch(a.user)
	events := make(chan folio.Event, 1)
	events <- folio.HoldingsChanged(holdings)
	go func() {
		defer close(events)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case hs, ok := <-changes:
				if !ok {
					return
				}
				select {
				case events <- folio.HoldingsChanged(hs):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// startValuator runs v on the holding changes and on the refresh schedule.
func (a *app) startValuator(ctx context.Context, v *folio.Valuator) (*scheduler, error) {
	events, err := a.holdingEvents(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := v.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("valuator stopped")
		}
	}()
	s := newScheduler(a.log)
	if err := s.add(a.cfg.Schedule.Refresh, "refresh", func() { v.Refresh(ctx) }); err != nil {
		return nil, err
	}
	s.Start()
	return s, nil
}

// serveCmd holds the flags for the 'serve' subcommand.
type serveCmd struct {
	addr   string
	period string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the portfolio over HTTP" }
func (*serveCmd) Usage() string {
	return `folio serve [-addr <host:port>] [-period <week|month|quarter|year>]

  Serves the portfolio JSON API, its chart and HTML report. The valuation is
  refreshed when holdings change and on the [schedule] refresh cron spec.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address. Defaults to the configured address.")
	f.StringVar(&c.period, "period", "", "Initial period. Defaults to the configured period.")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	if c.addr == "" {
		c.addr = a.cfg.Server.Addr
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	v := a.valuator(p)
	sched, err := a.startValuator(ctx, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting valuation: %v\n", err)
		return subcommands.ExitFailure
	}
	defer sched.Stop()

	srv := server.New(server.Config{
		Addr:           c.addr,
		User:           a.user,
		Store:          a.store,
		Valuator:       v,
		FX:             a.fx(),
		Advisor:        a.advisor(ctx),
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Log:            a.log,
	})
	errs := make(chan error, 1)
	go func() { errs <- srv.Start() }()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error serving: %v\n", err)
			return subcommands.ExitFailure
		}
	case <-ctx.Done():
		shutdown, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdown); err != nil {
			fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

// watchCmd holds the flags for the 'watch' subcommand.
type watchCmd struct {
	period string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "display the portfolio value as it changes" }
func (*watchCmd) Usage() string {
	return `folio watch [-period <week|month|quarter|year>]

  Prints the portfolio report every time it is valued again: when holdings
  change and on the [schedule] refresh cron spec. Stop with Ctrl+C.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "period", "", "Period to report on. Defaults to the configured period.")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	v := a.valuator(p, folio.OnPublish(func(s folio.Snapshot) {
		printMarkdown(renderer.RenderPortfolio(renderer.NewPortfolio(a.user, s, a.fx())))
	}))
	sched, err := a.startValuator(ctx, v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting valuation: %v\n", err)
		return subcommands.ExitFailure
	}
	defer sched.Stop()

	<-ctx.Done()
	return subcommands.ExitSuccess
}
