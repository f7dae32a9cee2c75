package strategy

import "math"

// DebtIntent is a command for the debt book: a fresh borrow, or, when Adjust
// is set, a delta against the existing position.
type DebtIntent struct {
	Symbol string
	Amount float64
	Adjust bool
}

// TotalBacking sums everything denominated in the reserve asset that backs
// the debt book: collateral already locked in positions, the free balance,
// and reserve committed to outstanding buy orders.
func TotalBacking(s Settings, snap Snapshot) float64 {
	total := snap.Balances[s.ReserveAsset]
	for _, pos := range snap.Debt {
		if pos.CollateralAsset == s.ReserveAsset {
			total += pos.Collateral
		}
	}
	for _, orders := range snap.OpenOrders {
		for _, o := range orders {
			if o.Side == SideBuy {
				total += o.Total
			}
		}
	}
	return total
}

// DebtAllocation computes the desired debt per quote asset from the total
// backing and the configured borrow percentages, converted at the settlement
// price of each market.
func DebtAllocation(s Settings, snap Snapshot) (map[string]float64, error) {
	backing := TotalBacking(s, snap)
	desired := make(map[string]float64, len(s.Markets))
	for _, m := range s.Markets {
		tick, ok := snap.Ticker[m.String()]
		if !ok || tick.SettlementPrice <= 0 {
			return nil, &MissingMarketDataError{Market: m.String()}
		}
		desired[m.Quote] = backing * (s.BorrowPct[m.Quote] / 100) / tick.SettlementPrice
	}
	return desired, nil
}

// PlanDebt reconciles open debt positions against the desired allocation.
// Zero positions bootstrap the whole book; a fully populated book is
// adjusted per position when the drift reaches the configured threshold;
// any other count is ambiguous and produces no commands.
func PlanDebt(s Settings, snap Snapshot) ([]DebtIntent, error) {
	desired, err := DebtAllocation(s, snap)
	if err != nil {
		return nil, err
	}
	switch n := len(snap.Debt); {
	case n == 0:
		intents := make([]DebtIntent, 0, len(s.Markets))
		for _, m := range s.Markets {
			intents = append(intents, DebtIntent{Symbol: m.Quote, Amount: desired[m.Quote]})
		}
		return intents, nil
	case n == len(s.Markets):
		var intents []DebtIntent
		for _, m := range s.Markets {
			pos, ok := snap.Debt[m.Quote]
			if !ok || pos.Debt <= 0 {
				return nil, &InconsistentDebtStateError{Have: n, Want: len(s.Markets)}
			}
			change := math.Abs(desired[m.Quote]/pos.Debt-1) * 100
			if change >= s.MinChangePct {
				intents = append(intents, DebtIntent{Symbol: m.Quote, Amount: desired[m.Quote] - pos.Debt, Adjust: true})
			}
		}
		return intents, nil
	default:
		return nil, &InconsistentDebtStateError{Have: n, Want: len(s.Markets)}
	}
}
