package walletrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"bts-wall-bot/internal/strategy"
)

type assetAmount struct {
	Amount  json.Number `json:"amount"`
	AssetID string      `json:"asset_id"`
}

type pricePair struct {
	Base  assetAmount `json:"base"`
	Quote assetAmount `json:"quote"`
}

type rawAsset struct {
	ID             string `json:"id"`
	Symbol         string `json:"symbol"`
	Precision      int    `json:"precision"`
	BitassetDataID string `json:"bitasset_data_id"`
}

// Asset resolves chain metadata for a symbol, including whether it is a
// collateral-backed synthetic and which asset backs it.
func (c *Client) Asset(ctx context.Context, symbol string) (strategy.AssetInfo, error) {
	meta, err := c.assetMeta(ctx, symbol)
	if err != nil {
		return strategy.AssetInfo{}, err
	}
	info := strategy.AssetInfo{
		Symbol:    meta.Symbol,
		ID:        meta.ID,
		Precision: meta.Precision,
		Synthetic: meta.BitassetDataID != "",
	}
	if !info.Synthetic {
		return info, nil
	}
	if meta.BackingAsset == "" {
		backing, err := c.resolveBackingAsset(ctx, meta)
		if err != nil {
			return strategy.AssetInfo{}, err
		}
		meta.BackingAsset = backing
	}
	info.BackingAsset = meta.BackingAsset
	return info, nil
}

func (c *Client) assetMeta(ctx context.Context, symbol string) (*assetMeta, error) {
	c.assetMu.Lock()
	cached, ok := c.assetsBySymbol[symbol]
	c.assetMu.Unlock()
	if ok {
		return cached, nil
	}
	var raw rawAsset
	if err := c.call(ctx, "get_asset", []any{symbol}, &raw); err != nil {
		return nil, err
	}
	return c.cacheAsset(raw), nil
}

func (c *Client) assetMetaByID(ctx context.Context, id string) (*assetMeta, error) {
	c.assetMu.Lock()
	cached, ok := c.assetsByID[id]
	c.assetMu.Unlock()
	if ok {
		return cached, nil
	}
	var raw rawAsset
	if err := c.call(ctx, "get_asset", []any{id}, &raw); err != nil {
		return nil, err
	}
	return c.cacheAsset(raw), nil
}

func (c *Client) cacheAsset(raw rawAsset) *assetMeta {
	meta := &assetMeta{
		ID:             raw.ID,
		Symbol:         raw.Symbol,
		Precision:      raw.Precision,
		BitassetDataID: raw.BitassetDataID,
	}
	c.assetMu.Lock()
	c.assetsBySymbol[meta.Symbol] = meta
	c.assetsByID[meta.ID] = meta
	c.assetMu.Unlock()
	return meta
}

func (c *Client) resolveBackingAsset(ctx context.Context, meta *assetMeta) (string, error) {
	var data struct {
		Options struct {
			ShortBackingAsset string `json:"short_backing_asset"`
		} `json:"options"`
	}
	if err := c.getObject(ctx, meta.BitassetDataID, &data); err != nil {
		return "", err
	}
	backing, err := c.assetMetaByID(ctx, data.Options.ShortBackingAsset)
	if err != nil {
		return "", err
	}
	return backing.Symbol, nil
}

// getObject fetches one graphene object; the wallet returns a single-element
// array.
func (c *Client) getObject(ctx context.Context, id string, out any) error {
	var objects []json.RawMessage
	if err := c.call(ctx, "get_object", []any{id}, &objects); err != nil {
		return err
	}
	if len(objects) == 0 {
		return fmt.Errorf("object %s not found", id)
	}
	return json.Unmarshal(objects[0], out)
}

// settlementPrice returns the published feed price of the market's quote
// asset, in base-asset units per quote unit. Zero means no feed.
func (c *Client) settlementPrice(ctx context.Context, m strategy.Market) (float64, error) {
	quote, err := c.assetMeta(ctx, m.Quote)
	if err != nil {
		return 0, err
	}
	base, err := c.assetMeta(ctx, m.Base)
	if err != nil {
		return 0, err
	}
	if quote.BitassetDataID == "" {
		return 0, nil
	}
	var data struct {
		CurrentFeed struct {
			SettlementPrice pricePair `json:"settlement_price"`
		} `json:"current_feed"`
	}
	if err := c.getObject(ctx, quote.BitassetDataID, &data); err != nil {
		return 0, err
	}
	return orientPrice(data.CurrentFeed.SettlementPrice, quote, base)
}

// orientPrice converts a graphene price pair into base-asset units per one
// quote-asset unit, whichever way round the pair is published.
func orientPrice(pair pricePair, quote, base *assetMeta) (float64, error) {
	pb, err := scaledAmount(pair.Base, precisionFor(pair.Base.AssetID, quote, base))
	if err != nil {
		return 0, err
	}
	pq, err := scaledAmount(pair.Quote, precisionFor(pair.Quote.AssetID, quote, base))
	if err != nil {
		return 0, err
	}
	if pb == 0 || pq == 0 {
		return 0, nil
	}
	switch {
	case pair.Base.AssetID == quote.ID && pair.Quote.AssetID == base.ID:
		return pq / pb, nil
	case pair.Base.AssetID == base.ID && pair.Quote.AssetID == quote.ID:
		return pb / pq, nil
	default:
		return 0, fmt.Errorf("price pair %s/%s does not match market %s:%s",
			pair.Base.AssetID, pair.Quote.AssetID, quote.Symbol, base.Symbol)
	}
}

func precisionFor(assetID string, candidates ...*assetMeta) int {
	for _, meta := range candidates {
		if meta != nil && meta.ID == assetID {
			return meta.Precision
		}
	}
	return 0
}

func scaledAmount(a assetAmount, precision int) (float64, error) {
	raw, err := a.Amount.Float64()
	if err != nil {
		// some nodes serialize int64 amounts as strings
		raw, err = strconv.ParseFloat(a.Amount.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("bad amount %q: %w", a.Amount.String(), err)
		}
	}
	return raw / math.Pow10(precision), nil
}

func formatAmount(v float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return strconv.FormatFloat(v, 'f', precision, 64)
}
