package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Queries = []QueryConfig{{Query: "nikon d3500"}}
	cfg.Sources.Ebay.ClientID = "id"
	cfg.Sources.Ebay.ClientSecret = "secret"
	return cfg
}

func TestValidateAppliesQueryDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	q := cfg.Queries[0]
	if q.ThresholdFraction != 0.20 {
		t.Errorf("ThresholdFraction = %g; want 0.20", q.ThresholdFraction)
	}
	if q.TrimFraction != 0.10 {
		t.Errorf("TrimFraction = %g; want 0.10", q.TrimFraction)
	}
	if q.MinSamples != 3 {
		t.Errorf("MinSamples = %d; want 3", q.MinSamples)
	}
	if q.SourceTimeout.Duration != 45*time.Second {
		t.Errorf("SourceTimeout = %s; want 45s", q.SourceTimeout.Duration)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"no queries", func(c *Config) { c.Queries = nil }, "at least one tracked query"},
		{"threshold too high", func(c *Config) { c.Queries[0].ThresholdFraction = 1.5 }, "threshold_fraction"},
		{"no sources", func(c *Config) {
			c.Sources.Ebay.Enabled = false
			c.Sources.Facebook.Enabled = false
		}, "at least one source"},
		{"ebay missing creds", func(c *Config) { c.Sources.Ebay.ClientSecret = "" }, "client_id and client_secret"},
		{"bad poll interval", func(c *Config) { c.Pipeline.PollInterval = duration{0} }, "poll_interval"},
		{"bad rate limit", func(c *Config) { c.Server.RateLimit = 0 }, "rate_limit"},
	}

	for _, tt := range tests {
		cfg := validConfig()
		tt.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate succeeded; want error containing %q", tt.name, tt.want)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not contain %q", tt.name, err.Error(), tt.want)
		}
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "nope"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate succeeded; want combined error")
	}
	for _, want := range []string{"unknown mode", "unknown log_level", "redis: addr"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("combined error missing %q: %v", want, err)
		}
	}
}
