package output

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat formats f with at most decimals places and no trailing zeros.
func FormatFloat(f float64, decimals int) string {
	m := math.Pow(10, float64(decimals))
	rounded := math.Round(f*m) / m
	if rounded == 0 {
		rounded = 0 // drops negative zero
	}
	s := strconv.FormatFloat(rounded, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// FormatQuantity renders a value with its unit, e.g. "1,250 minutes".
func FormatQuantity(v float64, unit string) string {
	s := groupThousands(FormatFloat(v, 2))
	if unit == "" {
		return s
	}
	return s + " " + unit
}

// FormatRatio renders a 0..1 ratio as a percentage.
func FormatRatio(r float64) string {
	return FormatFloat(r*100, 1) + "%"
}

// FormatChange renders a signed percentage change; nil means not computable.
func FormatChange(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	s := FormatFloat(*pct, 1) + "%"
	if *pct > 0 {
		s = "+" + s
	}
	return s
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return sign + s
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
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
