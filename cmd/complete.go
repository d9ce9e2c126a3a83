package cmd

import (
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/etnz/folio"
	"github.com/etnz/folio/date"
)

// Completion describes the commands and flags for shell completion.
func Completion() *complete.Command {
	var types, periods predict.Set
	for _, t := range folio.AssetTypes {
		types = append(types, string(t))
	}
	for _, p := range date.Periods {
		periods = append(periods, p.String())
	}
	period := map[string]complete.Predictor{"period": periods}

	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.toml"),
			"user":   predict.Something,
		},
		Sub: map[string]*complete.Command{
			"add": {Flags: map[string]complete.Predictor{
				"t": types,
				"k": predict.Something,
				"q": predict.Something,
				"d": predict.Something,
				"p": predict.Something,
				"n": predict.Something,
			}},
			"sell":   {Flags: map[string]complete.Predictor{"q": predict.Something}},
			"rm":     {},
			"list":   {},
			"search": {Flags: map[string]complete.Predictor{"t": types, "n": predict.Something}},
			"value": {Flags: map[string]complete.Predictor{
				"period": periods,
				"html":   predict.Files("*.html"),
			}},
			"chart": {Flags: map[string]complete.Predictor{
				"period": periods,
				"o":      predict.Files("*.png"),
			}},
			"advise": {Flags: period},
			"serve":  {Flags: map[string]complete.Predictor{"period": periods, "addr": predict.Something}},
			"watch":  {Flags: period},
		},
	}
}
