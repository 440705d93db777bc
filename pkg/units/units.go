// Package units rewrites heterogeneous byte-size expressions into gigabytes,
// the canonical unit every size-valued report field is stored in.
package units

import (
	"strconv"
	"strings"
)

// scale factors relative to GB, powers of 1024
var factors = map[string]float64{
	"B":  1.0 / (1024 * 1024 * 1024),
	"KB": 1.0 / (1024 * 1024),
	"MB": 1.0 / 1024,
	"GB": 1,
	"TB": 1024,
	"PB": 1024 * 1024,
}

// ToGB converts a size expression such as "512 MB" or "4.3 TB" to its value
// in gigabytes, suffixed with " GB". Input it cannot interpret is returned
// unchanged; ToGB never fails. A bare "0" normalizes to "0 GB", but any other
// unit-less number is passed through since its unit is unknowable.
func ToGB(s string) string {
	num, unit, ok := splitValue(s)
	if !ok {
		return s
	}

	if unit == "" {
		if num == 0 {
			return "0 GB"
		}
		return s
	}

	factor, ok := factors[strings.ToUpper(unit)]
	if !ok {
		return s
	}

	return Format(num*factor) + " GB"
}

// Format renders a gigabyte magnitude with precision that scales down as the
// value grows, so tiny values keep significant digits and large ones avoid
// false precision.
func Format(gb float64) string {
	switch {
	case gb < 0.01:
		return strconv.FormatFloat(gb, 'f', 4, 64)
	case gb < 1:
		return strconv.FormatFloat(gb, 'f', 3, 64)
	case gb < 10:
		return strconv.FormatFloat(gb, 'f', 2, 64)
	default:
		return strconv.FormatFloat(gb, 'f', 1, 64)
	}
}

// Magnitude parses the leading numeric part of a size expression, ignoring
// thousands separators and any unit suffix.
func Magnitude(s string) (float64, bool) {
	num, _, ok := splitValue(s)
	return num, ok
}

func splitValue(s string) (float64, string, bool) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if trimmed == "" {
		return 0, "", false
	}

	i := 0
	for i < len(trimmed) {
		c := trimmed[i]
		if (c >= '0' && c <= '9') || c == '.' || (i == 0 && (c == '-' || c == '+')) {
			i++
			continue
		}
		break
	}

	num, err := strconv.ParseFloat(trimmed[:i], 64)
	if err != nil {
		return 0, "", false
	}

	return num, strings.TrimSpace(trimmed[i:]), true
}
