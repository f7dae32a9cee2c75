package strategy

// BasePrice derives the price the walls bracket: the configured fixed price
// or the live settlement feed, shifted by the configured offset.
func BasePrice(s Settings, m Market, ticker Ticker) (float64, error) {
	base := s.TargetPrice.Value()
	if s.TargetPrice.IsFeed() {
		tick, ok := ticker[m.String()]
		if !ok || tick.SettlementPrice <= 0 {
			return 0, &MissingMarketDataError{Market: m.String()}
		}
		base = tick.SettlementPrice
	}
	return base * (1 + s.TargetPriceOffsetPct/100), nil
}

// WallPrices places the walls symmetrically at half the configured spread on
// each side of the base price.
func WallPrices(base, spreadPct float64) (buy, sell float64) {
	buy = base * (1 - spreadPct/200)
	sell = base * (1 + spreadPct/200)
	return buy, sell
}
