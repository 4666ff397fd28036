package chart

import (
	"math"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Recognized unit hints.
const (
	UnitDollars = "dollars"
	UnitPercent = "percent"
)

// compactThreshold is the magnitude from which currency switches to compact
// notation ($3M rather than $2,500,000).
const compactThreshold = 1_000_000

var printer = message.NewPrinter(language.English)

// FormatValue formats an axis or tooltip value according to unit:
// "dollars" gives whole US dollars, compact from one million up; "percent"
// appends a percent sign; anything else is a grouped decimal number.
func FormatValue(v float64, unit string) string {
	switch unit {
	case UnitDollars:
		return formatDollars(v)
	case UnitPercent:
		return strconv.FormatFloat(v, 'f', -1, 64) + "%"
	default:
		return formatNumber(v)
	}
}

func formatNumber(v float64) string {
	return printer.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(3)))
}

var compactUnits = []struct {
	div    float64
	suffix string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
}

func formatDollars(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v >= compactThreshold {
		for i, u := range compactUnits {
			if v < u.div {
				continue
			}
			n := math.Round(v / u.div)
			// 999.6M rounds to 1000M; promote to the next unit when there is one.
			if n >= 1000 && i > 0 {
				prev := compactUnits[i-1]
				n = math.Round(v / prev.div)
				return sign + "$" + printer.Sprintf("%v", number.Decimal(n, number.MaxFractionDigits(0))) + prev.suffix
			}
			return sign + "$" + printer.Sprintf("%v", number.Decimal(n, number.MaxFractionDigits(0))) + u.suffix
		}
	}
	return sign + "$" + printer.Sprintf("%v", number.Decimal(math.Round(v), number.MaxFractionDigits(0)))
}
