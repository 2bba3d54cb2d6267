package web

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Formatter renders numbers with the thousands and decimal separators of a
// display locale.
type Formatter struct {
	Locale string
	whole  string
	oneDec string
}

func NewFormatter(locale string) (Formatter, error) {
	switch locale {
	case "", "en":
		return Formatter{Locale: "en", whole: "#,###.", oneDec: "#,###.#"}, nil
	case "de":
		return Formatter{Locale: "de", whole: "#.###,", oneDec: "#.###,#"}, nil
	default:
		return Formatter{}, fmt.Errorf("unsupported locale %q", locale)
	}
}

// Whole rounds to an integer, e.g. 1,234,568.
func (f Formatter) Whole(v float64) string {
	return humanize.FormatFloat(f.whole, v)
}

// OneDecimal keeps one fractional digit, e.g. 12.3.
func (f Formatter) OneDecimal(v float64) string {
	return humanize.FormatFloat(f.oneDec, v)
}

func (f Formatter) Euro(v float64) string {
	return f.Whole(v) + " €"
}

func (f Formatter) EuroPerArea(v float64) string {
	return f.Whole(v) + " €/m²"
}

func (f Formatter) EuroPerAreaFine(v float64) string {
	return f.OneDecimal(v) + " €/m²"
}

func (f Formatter) Percent(v float64) string {
	return f.OneDecimal(v) + "%"
}
