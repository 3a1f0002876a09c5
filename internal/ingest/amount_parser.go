package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// fxToUSD holds the conversion rates applied during normalization.
// Coarse rates are acceptable here: the amount only feeds tier
// bucketing, which has million-dollar thresholds.
var fxToUSD = map[string]float64{
	"USD": 1.0,
	"EUR": 1.09,
	"GBP": 1.27,
	"CAD": 0.73,
	"AUD": 0.66,
	"JPY": 0.0068,
	"MXN": 0.054,
	"BRL": 0.18,
	"CHF": 1.12,
	"INR": 0.012,
}

var amountNumberRegex = regexp.MustCompile(`[\d][\d,\.]*`)

// ParseAmountUSD extracts a monetary value from free text and converts
// it to whole US dollars. The currency is detected from symbols and
// codes in the text, falling back to defaultCurrency, then USD. When
// the text holds a range the larger value wins. Returns false when no
// usable number is present or the currency is unknown.
func ParseAmountUSD(text, defaultCurrency string) (int64, bool) {
	textLower := strings.ToLower(text)

	currency := strings.ToUpper(strings.TrimSpace(defaultCurrency))
	switch {
	case strings.Contains(textLower, "£") || strings.Contains(textLower, "gbp") || strings.Contains(textLower, "pound"):
		currency = "GBP"
	case strings.Contains(textLower, "€") || strings.Contains(textLower, "eur"):
		currency = "EUR"
	case strings.Contains(textLower, "c$") || strings.Contains(textLower, "cad"):
		currency = "CAD"
	case strings.Contains(textLower, "mxn") || strings.Contains(textLower, "peso"):
		currency = "MXN"
	case strings.Contains(textLower, "$") || strings.Contains(textLower, "usd") || strings.Contains(textLower, "dollar"):
		currency = "USD"
	}
	if currency == "" {
		currency = "USD"
	}

	rate, ok := fxToUSD[currency]
	if !ok {
		return 0, false
	}

	var best float64
	for _, m := range amountNumberRegex.FindAllString(text, -1) {
		val, ok := parseNumber(m)
		if !ok {
			continue
		}
		val *= magnitudeFor(text, m)
		if val > best {
			best = val
		}
	}
	if best <= 0 {
		return 0, false
	}

	return int64(math.Round(best * rate)), true
}

// parseNumber handles both 1,000,000.50 and 1.000.000,50 separator
// conventions.
func parseNumber(s string) (float64, bool) {
	clean := strings.ReplaceAll(s, ",", "")
	if val, err := strconv.ParseFloat(clean, 64); err == nil && val > 0 {
		return val, true
	}
	// European format: dots as thousands separators
	clean = strings.ReplaceAll(s, ".", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	if val, err := strconv.ParseFloat(clean, 64); err == nil && val > 0 {
		return val, true
	}
	return 0, false
}

// magnitudeFor looks just past the matched number for a scale suffix
// ("5M", "5 million", "2.3bn").
func magnitudeFor(text, match string) float64 {
	idx := strings.Index(text, match)
	if idx < 0 {
		return 1
	}
	rest := strings.ToLower(strings.TrimSpace(text[idx+len(match):]))
	switch {
	case strings.HasPrefix(rest, "billion"), strings.HasPrefix(rest, "bn"), bareSuffix(rest, "b"):
		return 1e9
	case strings.HasPrefix(rest, "million"), strings.HasPrefix(rest, "mm"), bareSuffix(rest, "m"):
		return 1e6
	case strings.HasPrefix(rest, "thousand"), bareSuffix(rest, "k"):
		return 1e3
	}
	return 1
}

// bareSuffix reports whether s starts with the suffix letter followed
// by a non-letter, so "5M" scales but "5 MXN" does not.
func bareSuffix(s, suffix string) bool {
	if !strings.HasPrefix(s, suffix) {
		return false
	}
	if len(s) == len(suffix) {
		return true
	}
	c := s[len(suffix)]
	return c < 'a' || c > 'z'
}
