package ebay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestServer(t *testing.T, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   7200,
		})
	})

	mux.HandleFunc("GET /item_summary/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") != "nikon d3500" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"itemSummaries": []map[string]any{
				{
					"itemId":     "v1|123|0",
					"title":      "Nikon D3500 body",
					"price":      map[string]string{"value": "219.99", "currency": "GBP"},
					"itemWebUrl": "https://www.ebay.co.uk/itm/123",
				},
				{
					"itemId":     "v1|456|0",
					"title":      "Nikon D3500 kit",
					"itemWebUrl": "https://www.ebay.co.uk/itm/456",
				},
			},
		})
	})

	return httptest.NewServer(mux)
}

func TestFetchConvertsSummaries(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	f := NewFetcher(Config{
		ClientID:      "id",
		ClientSecret:  "secret",
		MarketplaceID: "EBAY_GB",
		BaseURL:       srv.URL,
		TokenURL:      srv.URL + "/token",
	})

	raw, err := f.Fetch(context.Background(), "nikon d3500")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("len = %d; want 2", len(raw))
	}
	if raw[0].NativeID != "v1|123|0" {
		t.Errorf("NativeID = %q; want v1|123|0", raw[0].NativeID)
	}
	if raw[0].RawPrice != "£219.99" {
		t.Errorf("RawPrice = %q; want £219.99", raw[0].RawPrice)
	}
	if raw[1].RawPrice != "" {
		t.Errorf("RawPrice = %q; want empty for missing price", raw[1].RawPrice)
	}
}

func TestFetchReusesCachedToken(t *testing.T) {
	var tokenCalls int32
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	f := NewFetcher(Config{
		ClientID:      "id",
		ClientSecret:  "secret",
		MarketplaceID: "EBAY_GB",
		BaseURL:       srv.URL,
		TokenURL:      srv.URL + "/token",
	})

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), "nikon d3500"); err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Errorf("token endpoint hit %d times; want 1 (cached)", got)
	}
}
