package strategy

import (
	"testing"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Ticker: Ticker{"USD:BTS": {SettlementPrice: 2.0}},
		OpenOrders: map[string][]OpenOrder{},
		Debt: map[string]DebtPosition{
			"USD": {Symbol: "USD", Debt: 100, Collateral: 500, CollateralAsset: "BTS"},
		},
		Balances: Balances{"USD": 100, "BTS": 1000},
	}
}

func TestPlanMarketPlacesBothSidesOnEmptyBook(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CancelAll {
		t.Fatalf("expected no cancel on empty book")
	}
	if len(plan.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(plan.Orders))
	}
	sell, buy := plan.Orders[0], plan.Orders[1]
	if sell.Side != SideSell || buy.Side != SideBuy {
		t.Fatalf("expected sell then buy, got %s then %s", sell.Side, buy.Side)
	}
	if !almostEqual(sell.Price, 2.05) {
		t.Fatalf("expected sell at 2.05, got %v", sell.Price)
	}
	if !almostEqual(buy.Price, 1.95) {
		t.Fatalf("expected buy at 1.95, got %v", buy.Price)
	}
	// symmetric sizing: quote allocation 40 is smaller than the converted
	// base allocation, so both sides get 40
	if !almostEqual(sell.Amount, 40) || !almostEqual(buy.Amount, 40) {
		t.Fatalf("expected symmetric amounts of 40, got sell=%v buy=%v", sell.Amount, buy.Amount)
	}
}

func TestPlanMarketRestoresMissingSide(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.1", Side: SideSell, Rate: 2.05, Total: 40},
	}
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CancelAll {
		t.Fatalf("expected no cancel when restoring a side")
	}
	if len(plan.Orders) != 1 || plan.Orders[0].Side != SideBuy {
		t.Fatalf("expected a single buy order, got %+v", plan.Orders)
	}

	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.2", Side: SideBuy, Rate: 1.95, Total: 40},
	}
	plan, err = PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Orders) != 1 || plan.Orders[0].Side != SideSell {
		t.Fatalf("expected a single sell order, got %+v", plan.Orders)
	}
}

func TestPlanMarketKeepsWallInsideDriftBand(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	// allowed 2.5, spread 5: keep while drift is strictly between 1.25% and
	// 3.75% of the settlement price
	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.1", Side: SideBuy, Rate: 1.96, Total: 40},  // 2% away
		{ID: "1.7.2", Side: SideSell, Rate: 2.04, Total: 40}, // 2% away
	}
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.CancelAll || len(plan.Orders) != 0 {
		t.Fatalf("expected wall to be kept, got cancel=%v orders=%d", plan.CancelAll, len(plan.Orders))
	}
}

func TestPlanMarketReplacesWallTooCloseToFeed(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.1", Side: SideBuy, Rate: 2.02, Total: 40}, // 1% away
		{ID: "1.7.2", Side: SideSell, Rate: 2.04, Total: 40},
	}
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.CancelAll {
		t.Fatalf("expected a full replacement for an order too close to the feed")
	}
	if len(plan.Orders) != 2 {
		t.Fatalf("expected fresh wall of 2 orders, got %d", len(plan.Orders))
	}
}

func TestPlanMarketReplacesWallTooFarFromFeed(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.1", Side: SideBuy, Rate: 1.96, Total: 40},
		{ID: "1.7.2", Side: SideSell, Rate: 2.08, Total: 40}, // 4% away
	}
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.CancelAll {
		t.Fatalf("expected a full replacement for an order too far from the feed")
	}
}

func TestPlanMarketBorrowsWhenQuoteHasNoDebt(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	delete(snap.Debt, "USD")
	snap.Balances = Balances{"BTS": 1000}
	plan, err := PlanMarket(s, s.Markets[0], snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Borrow == nil {
		t.Fatalf("expected a borrow intent for the missing debt position")
	}
	if plan.Borrow.Symbol != "USD" {
		t.Fatalf("expected borrow of USD, got %s", plan.Borrow.Symbol)
	}
	// backing 1000 * 30% / settlement 2.0
	if !almostEqual(plan.Borrow.Amount, 150) {
		t.Fatalf("expected borrow of 150, got %v", plan.Borrow.Amount)
	}
	if len(plan.Orders) != 0 {
		t.Fatalf("expected no orders before the debt position exists")
	}
}

func TestPlanMarketMissingFeedOnDriftCheck(t *testing.T) {
	s := testSettings()
	snap := testSnapshot()
	snap.OpenOrders["USD:BTS"] = []OpenOrder{
		{ID: "1.7.1", Side: SideBuy, Rate: 1.96, Total: 40},
		{ID: "1.7.2", Side: SideSell, Rate: 2.04, Total: 40},
	}
	snap.Ticker = Ticker{}
	if _, err := PlanMarket(s, s.Markets[0], snap); err == nil {
		t.Fatalf("expected error when the feed is missing")
	}
}

func TestAllocationsSplitAcrossMarkets(t *testing.T) {
	s := testSettings()
	s.Markets = []Market{{Quote: "USD", Base: "BTS"}, {Quote: "CNY", Base: "BTS"}}
	alloc := Allocations(s, Balances{"USD": 100, "CNY": 50, "BTS": 1000})
	if !almostEqual(alloc["USD"], 40) {
		t.Fatalf("expected USD allocation 40, got %v", alloc["USD"])
	}
	if !almostEqual(alloc["CNY"], 20) {
		t.Fatalf("expected CNY allocation 20, got %v", alloc["CNY"])
	}
	// BTS is referenced by both markets, so its share is halved
	if !almostEqual(alloc["BTS"], 200) {
		t.Fatalf("expected BTS allocation 200, got %v", alloc["BTS"])
	}
}

func TestWallOrdersAsymmetricSizing(t *testing.T) {
	s := testSettings()
	s.SymmetricSides = false
	snap := testSnapshot()
	intents, err := wallOrders(s, s.Markets[0], snap, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(intents))
	}
	if !almostEqual(intents[0].Amount, 40) {
		t.Fatalf("expected sell amount 40, got %v", intents[0].Amount)
	}
	if !almostEqual(intents[1].Amount, 400/1.95) {
		t.Fatalf("expected buy amount %v, got %v", 400/1.95, intents[1].Amount)
	}
}

func TestWallOrdersMinimumGate(t *testing.T) {
	s := testSettings()
	s.MinAmounts = map[string]float64{"USD": 50}
	snap := testSnapshot()
	intents, err := wallOrders(s, s.Markets[0], snap, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 0 {
		t.Fatalf("expected no orders below the minimum, got %d", len(intents))
	}
}

func TestWallOrdersOnlyBuy(t *testing.T) {
	s := testSettings()
	s.OnlyBuy = true
	snap := testSnapshot()
	intents, err := wallOrders(s, s.Markets[0], snap, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 1 || intents[0].Side != SideBuy {
		t.Fatalf("expected a single buy order, got %+v", intents)
	}
}

func TestWallOrdersOnlySell(t *testing.T) {
	s := testSettings()
	s.OnlySell = true
	snap := testSnapshot()
	intents, err := wallOrders(s, s.Markets[0], snap, false, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intents) != 1 || intents[0].Side != SideSell {
		t.Fatalf("expected a single sell order, got %+v", intents)
	}
}
