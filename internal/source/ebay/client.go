// Package ebay collects marketplace listings through the eBay Browse API.
// App tokens are obtained via the OAuth2 client-credentials grant and cached
// until shortly before expiry.
package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/dealbot/internal/domain"
)

const tokenScope = "https://api.ebay.com/oauth/api_scope"

// Config holds the credentials and endpoints for the Browse API.
type Config struct {
	ClientID      string
	ClientSecret  string
	MarketplaceID string // e.g. "EBAY_GB"
	BaseURL       string // Browse API root
	TokenURL      string // OAuth2 token endpoint
	MaxItems      int
}

// Fetcher implements pipeline.SourceFetcher against the eBay Browse API.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

// NewFetcher creates an eBay Fetcher.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 50
	}
	return &Fetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the marketplace tag.
func (f *Fetcher) Name() domain.Source {
	return domain.SourceEbay
}

// Fetch runs one Browse API item-summary search for the query and converts
// the summaries into raw listings.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]domain.RawListing, error) {
	token, err := f.appToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("ebay: app token: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(f.cfg.MaxItems))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		f.cfg.BaseURL+"/item_summary/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("ebay: create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", f.cfg.MarketplaceID)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ebay: search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ebay: search status %d: %s", resp.StatusCode, string(body))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ebay: decode search response: %w", err)
	}

	now := time.Now().UTC()
	listings := make([]domain.RawListing, 0, len(result.ItemSummaries))
	for _, item := range result.ItemSummaries {
		listings = append(listings, domain.RawListing{
			Source:    domain.SourceEbay,
			NativeID:  item.ItemID,
			Title:     item.Title,
			RawPrice:  item.Price.text(),
			URL:       item.ItemWebURL,
			FetchedAt: now,
		})
	}
	return listings, nil
}

// appToken returns a cached OAuth2 app token, fetching a fresh one when the
// cached token is within a minute of expiry.
func (f *Fetcher) appToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.token != "" && time.Now().Before(f.tokenExpires.Add(-time.Minute)) {
		return f.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(f.cfg.ClientID + ":" + f.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("token status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	f.token = tok.AccessToken
	f.tokenExpires = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return f.token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	ItemID     string    `json:"itemId"`
	Title      string    `json:"title"`
	Price      itemPrice `json:"price"`
	ItemWebURL string    `json:"itemWebUrl"`
}

type itemPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// text renders the structured Browse price as a display string so the
// normalizer treats all sources uniformly.
func (p itemPrice) text() string {
	if p.Value == "" {
		return ""
	}
	switch p.Currency {
	case "USD":
		return "$" + p.Value
	case "GBP":
		return "£" + p.Value
	case "EUR":
		return "€" + p.Value
	default:
		return p.Value + " " + p.Currency
	}
}
