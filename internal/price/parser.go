// Package price extracts numeric prices from the free-form, locale-formatted
// price strings that marketplace listings carry ("£1,234.50", "1 234,50 €",
// "$10 - $20", "$95 OBO"). Output is always in minor units of an ISO 4217
// currency so downstream arithmetic never touches floats until statistics.
package price

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// Locale hints how to default the currency when the raw string carries no
// recognizable symbol.
type Locale string

const (
	LocaleUS Locale = "en-US"
	LocaleGB Locale = "en-GB"
	LocaleEU Locale = "de-DE"
)

// Parsed is a successfully extracted price.
type Parsed struct {
	Amount   int64 // minor units, always positive
	Currency string
}

// numberRe captures the numeric token of a price: digit groups separated by
// ',', '.' or spaces, with an optional two-digit decimal tail.
var numberRe = regexp.MustCompile(`([0-9]+(?:[.,\s][0-9]{3})*(?:[.,][0-9]{1,2})?)`)

// rangeRe splits range expressions like "$10 - $20" or "10 to 20".
var rangeRe = regexp.MustCompile(`(?i)(?:\s*[-–—]\s*|\s+to\s+)`)

var currencySymbols = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
}

var localeCurrency = map[Locale]string{
	LocaleUS: "USD",
	LocaleGB: "GBP",
	LocaleEU: "EUR",
}

// noiseSuffixRe matches qualifiers that accompany a stated price without
// invalidating it ("£95 OBO", "100 or best offer, firm"). It only strips
// whole words at the end of the string, so the same letters inside an
// unrelated token ("confirmed", "mono") survive.
var noiseSuffixRe = regexp.MustCompile(`(?:[\s,.!]*\b(?:or best offer|best offer|o\.b\.o|obo|ono|negotiable|firm)\b\.?)+[\s,.!]*$`)

// Parse extracts a numeric price and currency from raw. Range expressions
// yield the lower bound; "or best offer" style suffixes are ignored. A
// missing, zero, or negative numeric token yields an error wrapping
// domain.ErrUnparsablePrice — callers must treat that as "price absent",
// never as zero.
func Parse(raw string, hint Locale) (Parsed, error) {
	cleaned := normalize(raw)
	if cleaned == "" {
		return Parsed{}, fmt.Errorf("price: empty input: %w", domain.ErrUnparsablePrice)
	}

	// A range is priced at its lower bound: deal detection is bound by the
	// worst-case opportunity.
	if parts := rangeRe.Split(cleaned, 2); len(parts) == 2 {
		low, lowErr := parseSingle(parts[0], hint)
		if lowErr == nil {
			if _, highErr := parseSingle(parts[1], hint); highErr == nil {
				return low, nil
			}
		}
	}

	return parseSingle(cleaned, hint)
}

func parseSingle(text string, hint Locale) (Parsed, error) {
	currency := localeCurrency[hint]
	if currency == "" {
		currency = "USD"
	}
	for sym, code := range currencySymbols {
		if strings.Contains(text, sym) {
			currency = code
			break
		}
	}

	m := numberRe.FindString(text)
	if m == "" {
		return Parsed{}, fmt.Errorf("price: no numeric token in %q: %w", text, domain.ErrUnparsablePrice)
	}

	value, err := strconv.ParseFloat(normalizeSeparators(m), 64)
	if err != nil {
		return Parsed{}, fmt.Errorf("price: %q: %w", text, domain.ErrUnparsablePrice)
	}
	if value <= 0 {
		return Parsed{}, fmt.Errorf("price: non-positive value in %q: %w", text, domain.ErrUnparsablePrice)
	}

	return Parsed{
		Amount:   int64(math.Round(value * 100)),
		Currency: currency,
	}, nil
}

// normalize lowercases, strips narrow no-break spaces used as digit grouping
// in some locales, and removes known noise suffixes.
func normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = noiseSuffixRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// normalizeSeparators rewrites a captured numeric token into strconv form.
// Both separators present: ',' is thousands, '.' is decimal. Comma only:
// decided by the length of the last group (3 digits = grouping, 2 = decimal).
// Spaces are always grouping.
func normalizeSeparators(tok string) string {
	tok = strings.ReplaceAll(tok, " ", "")

	hasComma := strings.Contains(tok, ",")
	hasDot := strings.Contains(tok, ".")

	switch {
	case hasComma && hasDot:
		return strings.ReplaceAll(tok, ",", "")
	case hasComma:
		parts := strings.Split(tok, ",")
		last := parts[len(parts)-1]
		if len(last) == 2 {
			return strings.Join(parts[:len(parts)-1], "") + "." + last
		}
		return strings.ReplaceAll(tok, ",", "")
	case hasDot:
		// "1.234.567" style grouping vs "12.50" decimal.
		parts := strings.Split(tok, ".")
		last := parts[len(parts)-1]
		if len(parts) > 2 || len(last) == 3 {
			return strings.ReplaceAll(tok, ".", "")
		}
		return tok
	default:
		return tok
	}
}
