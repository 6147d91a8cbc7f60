// Package facebook collects Facebook Marketplace listings with a headless
// Chrome session driven by chromedp. A persistent profile directory can be
// supplied so an existing logged-in session is reused and login prompts are
// avoided.
package facebook

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

// Config holds Marketplace scraping parameters.
type Config struct {
	BaseURL     string // e.g. "https://www.facebook.com"
	ProfileDir  string // persistent browser profile; empty for a throwaway session
	ScrollSteps int    // how many scroll-and-wait rounds to load more cards
	Headless    bool
	MaxItems    int
}

// Fetcher implements pipeline.SourceFetcher against Facebook Marketplace.
type Fetcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewFetcher creates a Marketplace Fetcher.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	if cfg.ScrollSteps <= 0 {
		cfg.ScrollSteps = 3
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	return &Fetcher{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "facebook_fetcher")),
	}
}

// Name returns the marketplace tag.
func (f *Fetcher) Name() domain.Source {
	return domain.SourceFacebook
}

// card is one marketplace result tile as extracted in the browser.
type card struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// extractCardsJS pulls every marketplace item anchor with its visible text.
// Tiles render the price on the first text line and the title on the second.
const extractCardsJS = `
	Array.from(document.querySelectorAll('a[href^="/marketplace/item/"]')).map(a => ({
		href: a.getAttribute('href'),
		text: a.innerText,
	}))
`

// Fetch navigates to the Marketplace search page for the query, scrolls to
// load more results, and converts the result tiles into raw listings.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]domain.RawListing, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if f.cfg.ProfileDir != "" {
		opts = append(opts, chromedp.UserDataDir(f.cfg.ProfileDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	searchURL := f.cfg.BaseURL + "/marketplace/search/?query=" + url.QueryEscape(query)
	f.logger.Debug("navigating to marketplace search", slog.String("url", searchURL))

	actions := []chromedp.Action{
		chromedp.Navigate(searchURL),
		chromedp.WaitVisible(`a[href^="/marketplace/item/"]`, chromedp.ByQuery),
	}
	for i := 0; i < f.cfg.ScrollSteps; i++ {
		actions = append(actions,
			chromedp.Evaluate(`window.scrollBy(0, 2000)`, nil),
			chromedp.Sleep(1500*time.Millisecond),
		)
	}

	var cards []card
	actions = append(actions, chromedp.Evaluate(extractCardsJS, &cards))

	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return nil, fmt.Errorf("facebook: load search results: %w", err)
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(cards))
	listings := make([]domain.RawListing, 0, len(cards))

	for _, c := range cards {
		if c.Href == "" {
			continue
		}
		fullURL := f.cfg.BaseURL + strings.SplitN(c.Href, "?", 2)[0]
		if _, dup := seen[fullURL]; dup {
			continue
		}
		seen[fullURL] = struct{}{}

		priceText, title := splitCardText(c.Text)
		listings = append(listings, domain.RawListing{
			Source:    domain.SourceFacebook,
			NativeID:  itemID(c.Href),
			Title:     title,
			RawPrice:  priceText,
			URL:       fullURL,
			FetchedAt: now,
		})

		if len(listings) >= f.cfg.MaxItems {
			break
		}
	}

	f.logger.Info("marketplace fetch complete",
		slog.String("query", query),
		slog.Int("cards", len(cards)),
		slog.Int("listings", len(listings)),
	)
	return listings, nil
}

// splitCardText separates the tile's price line from its title line. The
// price renders first; everything after the second line (location etc.) is
// discarded.
func splitCardText(text string) (priceText, title string) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > 0 {
		priceText = lines[0]
	}
	if len(lines) > 1 {
		title = lines[1]
	}
	return priceText, title
}

// itemID extracts the numeric marketplace item id from an item href like
// "/marketplace/item/123456789/?ref=...". Empty when the path shape is
// unexpected, in which case the normalizer falls back to a URL-derived id.
func itemID(href string) string {
	parts := strings.Split(strings.Trim(strings.SplitN(href, "?", 2)[0], "/"), "/")
	if len(parts) >= 3 && parts[0] == "marketplace" && parts[1] == "item" {
		return parts[2]
	}
	return ""
}
