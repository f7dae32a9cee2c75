package strategy

import "math"

type OrderIntent struct {
	Side   Side
	Price  float64
	Amount float64
}

type BorrowIntent struct {
	Symbol string
	Amount float64
}

// MarketPlan is the reconciler's decision for one market on one active tick.
// CancelAll means every open order in the market is torn down before the
// orders in Orders are placed. A non-nil Borrow defers order placement until
// the quote asset has a debt position to trade out of.
type MarketPlan struct {
	Market    Market
	CancelAll bool
	Orders    []OrderIntent
	Borrow    *BorrowIntent
}

// PlanMarket compares the market's live orders against the policy-ideal wall
// and decides: keep, fill in a missing side, or replace the whole wall.
func PlanMarket(s Settings, m Market, snap Snapshot) (MarketPlan, error) {
	plan := MarketPlan{Market: m}

	if _, ok := snap.Debt[m.Quote]; !ok {
		desired, err := DebtAllocation(s, snap)
		if err != nil {
			return plan, err
		}
		plan.Borrow = &BorrowIntent{Symbol: m.Quote, Amount: desired[m.Quote]}
		return plan, nil
	}

	orders := snap.OpenOrders[m.String()]
	switch len(orders) {
	case 0:
		intents, err := wallOrders(s, m, snap, false, false)
		if err != nil {
			return plan, err
		}
		plan.Orders = intents
	case 1:
		var intents []OrderIntent
		var err error
		if orders[0].Side == SideSell {
			intents, err = wallOrders(s, m, snap, true, false)
		} else {
			intents, err = wallOrders(s, m, snap, false, true)
		}
		if err != nil {
			return plan, err
		}
		plan.Orders = intents
	default:
		tick, ok := snap.Ticker[m.String()]
		if !ok || tick.SettlementPrice <= 0 {
			return plan, &MissingMarketDataError{Market: m.String()}
		}
		for _, o := range orders {
			drift := math.Abs(o.Rate-tick.SettlementPrice) / tick.SettlementPrice * 100
			if drift <= s.AllowedSpreadPct/2 || drift >= (s.AllowedSpreadPct+s.SpreadPct)/2 {
				intents, err := wallOrders(s, m, snap, false, false)
				if err != nil {
					return plan, err
				}
				plan.CancelAll = true
				plan.Orders = intents
				break
			}
		}
	}
	return plan, nil
}

// Allocations splits the configured volume share of each balance evenly
// across the markets that reference the asset.
func Allocations(s Settings, balances Balances) map[string]float64 {
	refs := make(map[string]int)
	for _, m := range s.Markets {
		refs[m.Quote]++
		refs[m.Base]++
	}
	alloc := make(map[string]float64, len(refs))
	for asset, n := range refs {
		if bal, ok := balances[asset]; ok {
			alloc[asset] = bal * s.VolumePct / 100 / float64(n)
		}
	}
	return alloc
}

// wallOrders sizes the buy/sell pair for one market. onlyBuy and onlySell
// restore a single missing side; the configured only_buy/only_sell flags
// suppress a side permanently.
//
// The minimum-size gate compares both sides against the quote-asset minimum.
// Both order amounts are expressed in quote units (the buy amount is the
// base allocation converted at the buy price), so the single minimum applies
// to either side.
func wallOrders(s Settings, m Market, snap Snapshot, onlyBuy, onlySell bool) ([]OrderIntent, error) {
	base, err := BasePrice(s, m, snap.Ticker)
	if err != nil {
		return nil, err
	}
	buyPrice, sellPrice := WallPrices(base, s.SpreadPct)
	if buyPrice <= 0 {
		return nil, &ConfigurationError{Market: m.String(), Reason: "derived buy price is not positive"}
	}

	alloc := Allocations(s, snap.Balances)
	quoteAlloc := alloc[m.Quote]
	baseAlloc := alloc[m.Base]
	suppressSell := onlyBuy || s.OnlyBuy
	suppressBuy := onlySell || s.OnlySell
	minAmount := s.MinAmounts[m.Quote]

	var intents []OrderIntent
	if !suppressSell && quoteAlloc > 0 {
		amount := quoteAlloc
		if s.SymmetricSides && !suppressBuy && baseAlloc > 0 {
			amount = math.Min(quoteAlloc, baseAlloc/buyPrice)
		}
		if amount >= minAmount && amount > 0 {
			intents = append(intents, OrderIntent{Side: SideSell, Price: sellPrice, Amount: amount})
		}
	}
	if !suppressBuy && baseAlloc > 0 {
		amount := baseAlloc / buyPrice
		if s.SymmetricSides && !suppressSell && quoteAlloc > 0 {
			amount = math.Min(quoteAlloc, baseAlloc/buyPrice)
		}
		if amount >= minAmount && amount > 0 {
			intents = append(intents, OrderIntent{Side: SideBuy, Price: buyPrice, Amount: amount})
		}
	}
	return intents, nil
}
