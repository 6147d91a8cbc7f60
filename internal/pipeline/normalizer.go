package pipeline

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/alanyoungcy/dealbot/internal/domain"
	"github.com/alanyoungcy/dealbot/internal/price"
)

// sourceLocale maps a marketplace to the locale hint used when a raw price
// string carries no currency symbol.
var sourceLocale = map[domain.Source]price.Locale{
	domain.SourceEbay:     price.LocaleGB,
	domain.SourceFacebook: price.LocaleGB,
}

// Normalizer converts raw per-source payloads into canonical listings.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(logger *slog.Logger) *Normalizer {
	return &Normalizer{logger: logger.With(slog.String("component", "normalizer"))}
}

// Normalize converts raw listings into canonical Listings. Records without a
// URL are dropped (no stable identity is derivable); a missing native id
// falls back to a URL-derived id; an unparsable price degrades the listing to
// priceless rather than dropping it, so it can still surface as "unparsed"
// for diagnostics.
func (n *Normalizer) Normalize(raw []domain.RawListing) []domain.Listing {
	out := make([]domain.Listing, 0, len(raw))

	for _, r := range raw {
		url := strings.TrimSpace(r.URL)
		if url == "" {
			n.logger.Warn("dropping listing with no URL",
				slog.String("source", string(r.Source)),
				slog.String("title", r.Title),
			)
			continue
		}

		listing := domain.Listing{
			ID:         domain.ListingID(r.Source, strings.TrimSpace(r.NativeID), url),
			Source:     r.Source,
			Title:      collapseWhitespace(r.Title),
			RawPrice:   strings.TrimSpace(r.RawPrice),
			URL:        url,
			ObservedAt: r.FetchedAt,
		}

		parsed, err := price.Parse(r.RawPrice, sourceLocale[r.Source])
		if err != nil {
			n.logger.Debug("price not parsable, keeping listing unpriced",
				slog.String("id", listing.ID),
				slog.String("raw_price", r.RawPrice),
			)
		} else {
			amount := parsed.Amount
			listing.Price = &amount
			listing.Currency = parsed.Currency
		}

		out = append(out, listing)
	}

	return out
}

func collapseWhitespace(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
