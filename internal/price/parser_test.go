package price

import (
	"errors"
	"testing"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

func TestParseHappy(t *testing.T) {
	tests := []struct {
		raw          string
		hint         Locale
		wantAmount   int64
		wantCurrency string
	}{
		{"$1,234.50", LocaleUS, 123450, "USD"},
		{"£1,234.50", LocaleGB, 123450, "GBP"},
		{"1 234,50", LocaleEU, 123450, "EUR"},
		{"€999.99", LocaleEU, 99999, "EUR"},
		{"$2,000", LocaleUS, 200000, "USD"},
		{"2000", LocaleGB, 200000, "GBP"},
		{"1,23", LocaleEU, 123, "EUR"},
		{"1.234.567", LocaleEU, 123456700, "EUR"},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw, tt.hint)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", tt.raw, err)
			continue
		}
		if got.Amount != tt.wantAmount {
			t.Errorf("Parse(%q).Amount = %d; want %d", tt.raw, got.Amount, tt.wantAmount)
		}
		if got.Currency != tt.wantCurrency {
			t.Errorf("Parse(%q).Currency = %q; want %q", tt.raw, got.Currency, tt.wantCurrency)
		}
	}
}

func TestParseRangeTakesLowerBound(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"$10 - $20", 1000},
		{"$10-$20", 1000},
		{"£15 to £30", 1500},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw, LocaleUS)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", tt.raw, err)
			continue
		}
		if got.Amount != tt.want {
			t.Errorf("Parse(%q).Amount = %d; want %d", tt.raw, got.Amount, tt.want)
		}
	}
}

func TestParseIgnoresOfferSuffixes(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{"$95 or best offer", 9500},
		{"$95 OBO", 9500},
		{"$95 o.b.o.", 9500},
		{"$95 OBO, firm!", 9500},
		{"£120 negotiable", 12000},
	}

	for _, tt := range tests {
		got, err := Parse(tt.raw, LocaleUS)
		if err != nil {
			t.Errorf("Parse(%q) returned error: %v", tt.raw, err)
			continue
		}
		if got.Amount != tt.want {
			t.Errorf("Parse(%q).Amount = %d; want %d", tt.raw, got.Amount, tt.want)
		}
	}
}

func TestNormalizeStripsOnlyWholeSuffixWords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"$95 obo", "$95"},
		{"£120 negotiable, firm!", "£120"},
		// Suffix letters inside unrelated tokens must survive intact.
		{"Confirmed $95", "confirmed $95"},
		{"kimono 50", "kimono 50"},
		{"monoprice hdmi $12", "monoprice hdmi $12"},
	}

	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFailures(t *testing.T) {
	for _, raw := range []string{"Free", "", "N/A", "—", "abc", "$0", "0.00"} {
		_, err := Parse(raw, LocaleUS)
		if err == nil {
			t.Errorf("Parse(%q) succeeded; want error", raw)
			continue
		}
		if !errors.Is(err, domain.ErrUnparsablePrice) {
			t.Errorf("Parse(%q) error = %v; want ErrUnparsablePrice", raw, err)
		}
	}
}

func TestParseCurrencyDefaultsFromLocale(t *testing.T) {
	got, err := Parse("250", LocaleGB)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Currency != "GBP" {
		t.Errorf("Currency = %q; want GBP", got.Currency)
	}
}
