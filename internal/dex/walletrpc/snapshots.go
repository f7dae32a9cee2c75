package walletrpc

import (
	"context"
	"encoding/json"

	"bts-wall-bot/internal/strategy"

	"go.uber.org/zap"
)

// Ticker fetches the settlement price for every configured market. Markets
// without a published feed are simply absent from the result; the engine
// reports them as missing market data.
func (c *Client) Ticker(ctx context.Context) (strategy.Ticker, error) {
	ticker := make(strategy.Ticker, len(c.markets))
	for _, m := range c.markets {
		price, err := c.settlementPrice(ctx, m)
		if err != nil {
			return nil, err
		}
		if price <= 0 {
			continue
		}
		ticker[m.String()] = strategy.MarketTick{SettlementPrice: price}
	}
	return ticker, nil
}

type rawLimitOrder struct {
	ID        string      `json:"id"`
	ForSale   json.Number `json:"for_sale"`
	SellPrice pricePair   `json:"sell_price"`
}

// OpenOrders fetches the account's open orders for every configured market,
// normalized to side, rate (base per quote) and base-asset total.
func (c *Client) OpenOrders(ctx context.Context) (map[string][]strategy.OpenOrder, error) {
	out := make(map[string][]strategy.OpenOrder, len(c.markets))
	for _, m := range c.markets {
		quote, err := c.assetMeta(ctx, m.Quote)
		if err != nil {
			return nil, err
		}
		base, err := c.assetMeta(ctx, m.Base)
		if err != nil {
			return nil, err
		}
		var raw []rawLimitOrder
		if err := c.call(ctx, "get_account_limit_orders", []any{c.account, m.Base, m.Quote, 100}, &raw); err != nil {
			return nil, err
		}
		orders := make([]strategy.OpenOrder, 0, len(raw))
		for _, o := range raw {
			order, ok := c.parseLimitOrder(o, quote, base)
			if !ok {
				continue
			}
			orders = append(orders, order)
		}
		out[m.String()] = orders
	}
	return out, nil
}

func (c *Client) parseLimitOrder(o rawLimitOrder, quote, base *assetMeta) (strategy.OpenOrder, bool) {
	rate, err := orientPrice(o.SellPrice, quote, base)
	if err != nil || rate <= 0 {
		c.warnParse("limit order", o.ID, err)
		return strategy.OpenOrder{}, false
	}
	order := strategy.OpenOrder{ID: o.ID, Rate: rate}
	switch o.SellPrice.Base.AssetID {
	case quote.ID:
		// selling the quote asset: the ask side of the wall
		order.Side = strategy.SideSell
		forSale, err := scaledAmount(assetAmount{Amount: o.ForSale, AssetID: quote.ID}, quote.Precision)
		if err != nil {
			c.warnParse("limit order", o.ID, err)
			return strategy.OpenOrder{}, false
		}
		order.Total = forSale * rate
	case base.ID:
		order.Side = strategy.SideBuy
		forSale, err := scaledAmount(assetAmount{Amount: o.ForSale, AssetID: base.ID}, base.Precision)
		if err != nil {
			c.warnParse("limit order", o.ID, err)
			return strategy.OpenOrder{}, false
		}
		order.Total = forSale
	default:
		return strategy.OpenOrder{}, false
	}
	return order, true
}

type rawCallOrder struct {
	ID         string      `json:"id"`
	Collateral json.Number `json:"collateral"`
	Debt       json.Number `json:"debt"`
	CallPrice  pricePair   `json:"call_price"`
}

// DebtPositions fetches the account's open margin positions, keyed by the
// borrowed symbol.
func (c *Client) DebtPositions(ctx context.Context) (map[string]strategy.DebtPosition, error) {
	var raw []rawCallOrder
	if err := c.call(ctx, "get_call_orders_by_account", []any{c.account, "1.3.0", 100}, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]strategy.DebtPosition, len(raw))
	for _, o := range raw {
		// call price: base is the collateral asset, quote is the debt asset
		collateralMeta, err := c.assetMetaByID(ctx, o.CallPrice.Base.AssetID)
		if err != nil {
			return nil, err
		}
		debtMeta, err := c.assetMetaByID(ctx, o.CallPrice.Quote.AssetID)
		if err != nil {
			return nil, err
		}
		debt, err := scaledAmount(assetAmount{Amount: o.Debt, AssetID: debtMeta.ID}, debtMeta.Precision)
		if err != nil {
			c.warnParse("call order", o.ID, err)
			continue
		}
		collateral, err := scaledAmount(assetAmount{Amount: o.Collateral, AssetID: collateralMeta.ID}, collateralMeta.Precision)
		if err != nil {
			c.warnParse("call order", o.ID, err)
			continue
		}
		out[debtMeta.Symbol] = strategy.DebtPosition{
			Symbol:          debtMeta.Symbol,
			Debt:            debt,
			Collateral:      collateral,
			CollateralAsset: collateralMeta.Symbol,
		}
	}
	return out, nil
}

type rawBalance struct {
	Amount  json.Number `json:"amount"`
	AssetID string      `json:"asset_id"`
}

func (c *Client) Balances(ctx context.Context) (strategy.Balances, error) {
	var raw []rawBalance
	if err := c.call(ctx, "list_account_balances", []any{c.account}, &raw); err != nil {
		return nil, err
	}
	balances := make(strategy.Balances, len(raw))
	for _, b := range raw {
		meta, err := c.assetMetaByID(ctx, b.AssetID)
		if err != nil {
			return nil, err
		}
		amount, err := scaledAmount(assetAmount{Amount: b.Amount, AssetID: b.AssetID}, meta.Precision)
		if err != nil {
			c.warnParse("balance", b.AssetID, err)
			continue
		}
		balances[meta.Symbol] = amount
	}
	return balances, nil
}

func (c *Client) warnParse(what, id string, err error) {
	if c.log == nil {
		return
	}
	c.log.Warn("skipping unparseable "+what, zap.String("id", id), zap.Error(err))
}
