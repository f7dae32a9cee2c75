package strategy

import (
	"fmt"
	"strings"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Market is a QUOTE:BASE pair. The quote asset is the synthetic asset being
// traded, the base asset is the collateral it is backed by.
type Market struct {
	Quote string
	Base  string
}

func ParseMarket(s string) (Market, error) {
	quote, base, ok := strings.Cut(s, ":")
	quote = strings.TrimSpace(quote)
	base = strings.TrimSpace(base)
	if !ok || quote == "" || base == "" {
		return Market{}, fmt.Errorf("invalid market %q: want QUOTE:BASE", s)
	}
	return Market{Quote: quote, Base: base}, nil
}

func (m Market) String() string {
	return m.Quote + ":" + m.Base
}

// MarketTick is the per-market slice of the ticker snapshot.
type MarketTick struct {
	SettlementPrice float64
}

type Ticker map[string]MarketTick

type OpenOrder struct {
	ID    string
	Side  Side
	Rate  float64
	Total float64
}

// DebtPosition is an open collateralized loan, keyed by the borrowed symbol.
type DebtPosition struct {
	Symbol          string
	Debt            float64
	Collateral      float64
	CollateralAsset string
}

type Balances map[string]float64

// Snapshot bundles the four market views fetched at the start of an active
// tick. It is built fresh every tick and discarded at the end of it.
type Snapshot struct {
	Ticker     Ticker
	OpenOrders map[string][]OpenOrder
	Debt       map[string]DebtPosition
	Balances   Balances
}

// AssetInfo is the chain metadata the validator needs about one asset.
type AssetInfo struct {
	Symbol       string
	ID           string
	Precision    int
	Synthetic    bool
	BackingAsset string
}
