package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"bts-wall-bot/internal/config"
)

func testSettings() Settings {
	return Settings{
		Markets:          []Market{{Quote: "USD", Base: "BTS"}},
		TargetPrice:      FeedTarget(),
		SpreadPct:        5,
		AllowedSpreadPct: 2.5,
		VolumePct:        40,
		SymmetricSides:   true,
		Expiration:       24 * time.Hour,
		Ratio:            2.5,
		SkipBlocks:       20,
		BorrowPct:        map[string]float64{"USD": 30},
		MinAmounts:       map[string]float64{"USD": 1},
		MinChangePct:     10,
		ReserveAsset:     "BTS",
	}
}

func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }
func intPtr(v int) *int           { return &v }

func validStrategyConfig() config.StrategyConfig {
	return config.StrategyConfig{
		Markets:                 []string{"USD:BTS"},
		TargetPrice:             "feed",
		SpreadPercentage:        floatPtr(5),
		AllowedSpreadPercentage: floatPtr(2.5),
		VolumePercentage:        floatPtr(40),
		Ratio:                   floatPtr(2.5),
		BorrowPercentages:       map[string]float64{"USD": 30},
		MinimumAmounts:          map[string]float64{"USD": 1},
		MinimumChangePercentage: floatPtr(10),
	}
}

func TestNewSettingsDefaults(t *testing.T) {
	s, err := NewSettings(validStrategyConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TargetPriceOffsetPct != 0 {
		t.Fatalf("expected zero default offset, got %v", s.TargetPriceOffsetPct)
	}
	if !s.SymmetricSides {
		t.Fatalf("expected symmetric sides by default")
	}
	if s.Expiration != 24*time.Hour {
		t.Fatalf("expected 24h default expiration, got %v", s.Expiration)
	}
	if s.SkipBlocks != 20 {
		t.Fatalf("expected default skip blocks 20, got %d", s.SkipBlocks)
	}
	if s.ReserveAsset != "BTS" {
		t.Fatalf("expected default reserve asset BTS, got %s", s.ReserveAsset)
	}
}

func TestNewSettingsOverrides(t *testing.T) {
	raw := validStrategyConfig()
	raw.TargetPrice = "3.5"
	raw.TargetPriceOffsetPercentage = floatPtr(-1)
	raw.SymmetricSides = boolPtr(false)
	raw.ExpirationSeconds = intPtr(3600)
	raw.SkipBlocks = intPtr(5)
	raw.ReserveAsset = "CNY"
	raw.BorrowPercentages = map[string]float64{"USD": 30}
	s, err := NewSettings(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TargetPrice.IsFeed() || s.TargetPrice.Value() != 3.5 {
		t.Fatalf("expected fixed target 3.5, got %+v", s.TargetPrice)
	}
	if s.TargetPriceOffsetPct != -1 {
		t.Fatalf("expected offset -1, got %v", s.TargetPriceOffsetPct)
	}
	if s.SymmetricSides {
		t.Fatalf("expected symmetric sides disabled")
	}
	if s.Expiration != time.Hour {
		t.Fatalf("expected 1h expiration, got %v", s.Expiration)
	}
	if s.SkipBlocks != 5 {
		t.Fatalf("expected skip blocks 5, got %d", s.SkipBlocks)
	}
	if s.ReserveAsset != "CNY" {
		t.Fatalf("expected reserve asset CNY, got %s", s.ReserveAsset)
	}
}

func TestNewSettingsMissingKeys(t *testing.T) {
	cases := []struct {
		key    string
		mutate func(*config.StrategyConfig)
	}{
		{"markets", func(c *config.StrategyConfig) { c.Markets = nil }},
		{"target_price", func(c *config.StrategyConfig) { c.TargetPrice = "" }},
		{"spread_percentage", func(c *config.StrategyConfig) { c.SpreadPercentage = nil }},
		{"volume_percentage", func(c *config.StrategyConfig) { c.VolumePercentage = nil }},
		{"ratio", func(c *config.StrategyConfig) { c.Ratio = nil }},
		{"borrow_percentages", func(c *config.StrategyConfig) { c.BorrowPercentages = nil }},
		{"minimum_amounts", func(c *config.StrategyConfig) { c.MinimumAmounts = nil }},
		{"minimum_change_percentage", func(c *config.StrategyConfig) { c.MinimumChangePercentage = nil }},
	}
	for _, tc := range cases {
		raw := validStrategyConfig()
		tc.mutate(&raw)
		_, err := NewSettings(raw)
		var missing *MissingSettingError
		if !errors.As(err, &missing) {
			t.Fatalf("%s: expected MissingSettingError, got %v", tc.key, err)
		}
		if missing.Key != tc.key {
			t.Fatalf("expected missing key %s, got %s", tc.key, missing.Key)
		}
	}
}

func TestNewSettingsRejectsBorrowAbove100(t *testing.T) {
	raw := validStrategyConfig()
	raw.Markets = []string{"USD:BTS", "CNY:BTS"}
	raw.BorrowPercentages = map[string]float64{"USD": 60, "CNY": 60}
	raw.MinimumAmounts = map[string]float64{"USD": 1, "CNY": 1}
	_, err := NewSettings(raw)
	var bad *ConfigurationError
	if !errors.As(err, &bad) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewSettingsRejectsMarketWithoutBorrowShare(t *testing.T) {
	raw := validStrategyConfig()
	raw.Markets = []string{"USD:BTS", "CNY:BTS"}
	_, err := NewSettings(raw)
	var bad *ConfigurationError
	if !errors.As(err, &bad) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewSettingsRejectsBadMarketSpec(t *testing.T) {
	raw := validStrategyConfig()
	raw.Markets = []string{"USDBTS"}
	_, err := NewSettings(raw)
	var bad *ConfigurationError
	if !errors.As(err, &bad) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestParseTargetPriceFeedSpellings(t *testing.T) {
	for _, raw := range []string{"feed", "FEED", "settlement_price", "price_feed"} {
		target, err := ParseTargetPrice(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if !target.IsFeed() {
			t.Fatalf("%s: expected feed target", raw)
		}
	}
	if _, err := ParseTargetPrice("not-a-price"); err == nil {
		t.Fatalf("expected error for gibberish target price")
	}
}

type fakeAssetSource map[string]AssetInfo

func (f fakeAssetSource) Asset(_ context.Context, symbol string) (AssetInfo, error) {
	info, ok := f[symbol]
	if !ok {
		return AssetInfo{}, errors.New("unknown asset " + symbol)
	}
	return info, nil
}

func TestValidateMarkets(t *testing.T) {
	s := testSettings()
	src := fakeAssetSource{
		"USD": {Symbol: "USD", Synthetic: true, BackingAsset: "BTS"},
	}
	if err := ValidateMarkets(context.Background(), src, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMarketsRejectsNonSyntheticQuote(t *testing.T) {
	s := testSettings()
	src := fakeAssetSource{
		"USD": {Symbol: "USD", Synthetic: false},
	}
	var bad *ConfigurationError
	if err := ValidateMarkets(context.Background(), src, s); !errors.As(err, &bad) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestValidateMarketsRejectsWrongCollateral(t *testing.T) {
	s := testSettings()
	src := fakeAssetSource{
		"USD": {Symbol: "USD", Synthetic: true, BackingAsset: "CNY"},
	}
	var bad *ConfigurationError
	if err := ValidateMarkets(context.Background(), src, s); !errors.As(err, &bad) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
