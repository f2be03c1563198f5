package exporter

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"macrostress/internal/panel"
)

// FormatMoneyBn renders an amount in billions of pounds, e.g. £1,234.57bn.
func FormatMoneyBn(x float64) string {
	return "£" + FormatFixed(x, 2) + "bn"
}

// FormatPct renders a decimal ratio as a percentage, e.g. 0.14 → 14.00%.
func FormatPct(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return FormatFixed(x, 2) + "%"
	}
	return groupThousands(decimal.NewFromFloat(x).Shift(2).StringFixed(2)) + "%"
}

// FormatFixed renders x with places decimals and comma thousands separators.
func FormatFixed(x float64, places int32) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Inf"
	case math.IsInf(x, -1):
		return "-Inf"
	}
	return groupThousands(decimal.NewFromFloat(x).StringFixed(places))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

// formatFloat renders a table value at full precision; NaN is an empty cell.
func formatFloat(f float64) string {
	return panel.FormatValue(f)
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}
