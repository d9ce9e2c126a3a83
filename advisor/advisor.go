// Package advisor writes savings and budget suggestions about a portfolio.
//
// Suggestions come from Gemini when an Asker is configured. Without one, or
// when it fails, a fixed set of rules over the portfolio Stats is used.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/rs/zerolog"

	"github.com/etnz/folio/renderer"
)

// Asker answers a prompt with markdown text.
type Asker interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Thresholds above which the rules comment on the portfolio.
const (
	concentrated = 0.5
	volatile     = 0.03
	deepDrawdown = 0.2
)

// Advisor writes suggestions.
type Advisor struct {
	asker Asker
	log   zerolog.Logger
}

// Option configures an Advisor.
type Option func(*Advisor)

// WithAsker asks a for the suggestions.
func WithAsker(a Asker) Option {
	return func(ad *Advisor) { ad.asker = a }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(ad *Advisor) { ad.log = log }
}

// New returns an Advisor.
func New(opts ...Option) *Advisor {
	a := &Advisor{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Advise returns markdown suggestions for p.
func (a *Advisor) Advise(ctx context.Context, p *renderer.Portfolio) string {
	s := Analyze(p)
	if a.asker != nil {
		text, err := a.asker.Ask(ctx, Prompt(p, s))
		if err == nil && strings.TrimSpace(text) != "" {
			return text
		}
		a.log.Warn().Err(err).Msg("advisor unavailable, using rules")
	}
	return Rules(p, s)
}

// Prompt is the question sent to the Asker.
func Prompt(p *renderer.Portfolio, s Stats) string {
	var b strings.Builder
	b.WriteString(renderer.RenderPortfolio(p))
	fmt.Fprintf(&b, "\n\nValued days: %d\n", s.Days)
	fmt.Fprintf(&b, "Return over the period: %.2f%%\n", 100*s.Return)
	fmt.Fprintf(&b, "Daily volatility: %.2f%%\n", 100*s.Volatility)
	fmt.Fprintf(&b, "Maximum drawdown: %.2f%%\n", 100*s.Drawdown)
	if s.Largest != "" {
		fmt.Fprintf(&b, "Largest holding: %s at %.0f%% of the value\n", s.Largest, 100*s.Weight)
	}
	b.WriteString("\nWhat savings and budget suggestions do you have?\n")
	return b.String()
}

var rules = template.Must(template.New("rules").Funcs(template.FuncMap{
	"pct": func(f float64) string { return fmt.Sprintf("%.0f%%", 100*f) },
	"abs": func(f float64) float64 {
		if f < 0 {
			return -f
		}
		return f
	},
}).Parse(`## Suggestions for {{.P.User}}
{{if eq (len .P.Rows) 0}}
- Your portfolio is empty. Start by setting aside a fixed amount every month before spending, even a small one.
{{- else}}
{{- if gt .S.Unvalued 0}}
- {{.S.Unvalued}} holding(s) could not be valued. Fix their asset keys or retry later so the figures below are complete.
{{- end}}
{{- if lt .S.Return 0.0}}
- The portfolio lost {{pct (abs .S.Return)}} over the last {{.P.Period}}. Keep your regular contributions unchanged rather than selling in a drop.
{{- else if gt .S.Return 0.0}}
- The portfolio gained {{pct .S.Return}} over the last {{.P.Period}}. Consider moving part of the gain to your emergency savings.
{{- end}}
{{- if gt .S.Weight .Concentrated}}
- {{.S.Largest}} is {{pct .S.Weight}} of the value. Spreading new savings over other assets reduces that dependency.
{{- end}}
{{- if or (gt .S.Volatility .Volatile) (gt .S.Drawdown .Drawdown)}}
- The value moves a lot (drawdown {{pct .S.Drawdown}}). Keep at least three months of expenses outside this portfolio.
{{- end}}
- Review your monthly budget and automate a transfer to savings on pay day.
{{- end}}
`))

// Rules returns the rule based suggestions for p.
func Rules(p *renderer.Portfolio, s Stats) string {
	var b strings.Builder
	data := struct {
		P            *renderer.Portfolio
		S            Stats
		Concentrated float64
		Volatile     float64
		Drawdown     float64
	}{p, s, concentrated, volatile, deepDrawdown}
	if err := rules.Execute(&b, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", "rules", err)
	}
	return b.String()
}
