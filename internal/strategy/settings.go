package strategy

import (
	"context"
	"strconv"
	"strings"
	"time"

	"bts-wall-bot/internal/config"
)

const (
	defaultExpiration   = 24 * time.Hour
	defaultSkipBlocks   = 20
	defaultReserveAsset = "BTS"
)

// TargetPrice is either a fixed price or a reference to the live settlement
// feed of the market's quote asset.
type TargetPrice struct {
	feed  bool
	value float64
}

func FixedTarget(value float64) TargetPrice {
	return TargetPrice{value: value}
}

func FeedTarget() TargetPrice {
	return TargetPrice{feed: true}
}

func (t TargetPrice) IsFeed() bool {
	return t.feed
}

func (t TargetPrice) Value() float64 {
	return t.value
}

// ParseTargetPrice accepts a numeric price or one of the feed spellings the
// configuration has historically allowed.
func ParseTargetPrice(raw string) (TargetPrice, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return TargetPrice{}, &MissingSettingError{Key: "target_price"}
	case "feed", "settlement_price", "price_feed":
		return FeedTarget(), nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return TargetPrice{}, &ConfigurationError{Reason: "target_price must be a number or \"feed\""}
	}
	return FixedTarget(value), nil
}

// Settings is the validated, immutable-per-cycle strategy configuration.
// Downstream components only ever see this struct, never the raw config.
type Settings struct {
	Markets              []Market
	TargetPrice          TargetPrice
	TargetPriceOffsetPct float64
	SpreadPct            float64
	AllowedSpreadPct     float64
	VolumePct            float64
	SymmetricSides       bool
	OnlyBuy              bool
	OnlySell             bool
	Expiration           time.Duration
	Ratio                float64
	SkipBlocks           int
	BorrowPct            map[string]float64
	MinAmounts           map[string]float64
	MinChangePct         float64
	ReserveAsset         string
}

// NewSettings validates the raw strategy block, applies defaults and returns
// the settings every tick runs against.
func NewSettings(raw config.StrategyConfig) (Settings, error) {
	if len(raw.Markets) == 0 {
		return Settings{}, &MissingSettingError{Key: "markets"}
	}
	markets := make([]Market, 0, len(raw.Markets))
	for _, spec := range raw.Markets {
		m, err := ParseMarket(spec)
		if err != nil {
			return Settings{}, &ConfigurationError{Market: spec, Reason: "want QUOTE:BASE"}
		}
		markets = append(markets, m)
	}

	target, err := ParseTargetPrice(raw.TargetPrice)
	if err != nil {
		return Settings{}, err
	}
	if raw.SpreadPercentage == nil {
		return Settings{}, &MissingSettingError{Key: "spread_percentage"}
	}
	if raw.VolumePercentage == nil {
		return Settings{}, &MissingSettingError{Key: "volume_percentage"}
	}
	if raw.Ratio == nil {
		return Settings{}, &MissingSettingError{Key: "ratio"}
	}
	if len(raw.BorrowPercentages) == 0 {
		return Settings{}, &MissingSettingError{Key: "borrow_percentages"}
	}
	if len(raw.MinimumAmounts) == 0 {
		return Settings{}, &MissingSettingError{Key: "minimum_amounts"}
	}
	if raw.MinimumChangePercentage == nil {
		return Settings{}, &MissingSettingError{Key: "minimum_change_percentage"}
	}

	s := Settings{
		Markets:        markets,
		TargetPrice:    target,
		SpreadPct:      *raw.SpreadPercentage,
		VolumePct:      *raw.VolumePercentage,
		SymmetricSides: true,
		OnlyBuy:        raw.OnlyBuy,
		OnlySell:       raw.OnlySell,
		Expiration:     defaultExpiration,
		Ratio:          *raw.Ratio,
		SkipBlocks:     defaultSkipBlocks,
		BorrowPct:      raw.BorrowPercentages,
		MinAmounts:     raw.MinimumAmounts,
		MinChangePct:   *raw.MinimumChangePercentage,
		ReserveAsset:   defaultReserveAsset,
	}
	if raw.TargetPriceOffsetPercentage != nil {
		s.TargetPriceOffsetPct = *raw.TargetPriceOffsetPercentage
	}
	if raw.AllowedSpreadPercentage != nil {
		s.AllowedSpreadPct = *raw.AllowedSpreadPercentage
	}
	if raw.SymmetricSides != nil {
		s.SymmetricSides = *raw.SymmetricSides
	}
	if raw.ExpirationSeconds != nil {
		s.Expiration = time.Duration(*raw.ExpirationSeconds) * time.Second
	}
	if raw.SkipBlocks != nil {
		s.SkipBlocks = *raw.SkipBlocks
	}
	if raw.ReserveAsset != "" {
		s.ReserveAsset = raw.ReserveAsset
	}

	var borrowTotal float64
	for _, pct := range s.BorrowPct {
		borrowTotal += pct
	}
	if borrowTotal > 100 {
		return Settings{}, &ConfigurationError{Reason: "borrow_percentages sum above 100"}
	}
	if s.SkipBlocks <= 0 {
		return Settings{}, &ConfigurationError{Reason: "skip_blocks must be positive"}
	}
	for _, m := range s.Markets {
		if _, ok := s.BorrowPct[m.Quote]; !ok {
			return Settings{}, &ConfigurationError{Market: m.String(), Reason: "no borrow percentage for quote asset"}
		}
		if _, ok := s.MinAmounts[m.Quote]; !ok {
			return Settings{}, &ConfigurationError{Market: m.String(), Reason: "no minimum amount for quote asset"}
		}
	}
	return s, nil
}

// AssetSource resolves chain metadata for an asset symbol.
type AssetSource interface {
	Asset(ctx context.Context, symbol string) (AssetInfo, error)
}

// ValidateMarkets checks, once at startup, that every configured market
// trades a synthetic quote asset against the collateral asset backing it.
func ValidateMarkets(ctx context.Context, src AssetSource, s Settings) error {
	for _, m := range s.Markets {
		quote, err := src.Asset(ctx, m.Quote)
		if err != nil {
			return err
		}
		if !quote.Synthetic {
			return &ConfigurationError{Market: m.String(), Reason: "quote asset " + m.Quote + " is not a synthetic asset and cannot be borrowed"}
		}
		if quote.BackingAsset != m.Base {
			return &ConfigurationError{Market: m.String(), Reason: "collateral asset of " + m.Quote + " is " + quote.BackingAsset + ", not " + m.Base}
		}
	}
	return nil
}
