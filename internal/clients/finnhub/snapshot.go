package finnhub

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/bobmcallan/handspread/internal/models"
)

// buildSnapshot assembles a MarketSnapshot from the two endpoint payloads.
// Sanitation happens here, not in transport: an empty or partial payload is
// not an error, it yields nil-valued fields with warnings.
func (c *Client) buildSnapshot(symbol string, quote quoteResponse, profile profileResponse, quoteRaw, profileRaw json.RawMessage) *models.MarketSnapshot {
	now := c.now().UTC()

	price, priceWarnings := parsePositivePrice(quote.Current)
	priceMV := &models.MarketValue{
		ValueHeader: models.ValueHeader{
			Metric:   "price",
			Value:    price,
			Unit:     models.UnitUSD,
			Warnings: priceWarnings,
		},
		Vendor:    vendorName,
		Symbol:    symbol,
		Endpoint:  "quote",
		FetchedAt: now,
	}
	if c.keepRaw {
		priceMV.Raw = quoteRaw
	}

	shares, sharesWarnings := parseShareCount(profile.ShareOutstanding)
	sharesMV := &models.MarketValue{
		ValueHeader: models.ValueHeader{
			Metric:   "shares_outstanding",
			Value:    shares,
			Unit:     models.UnitShares,
			Warnings: sharesWarnings,
		},
		Vendor:    vendorName,
		Symbol:    symbol,
		Endpoint:  "profile2",
		FetchedAt: now,
	}
	if c.keepRaw {
		sharesMV.Raw = profileRaw
	}

	var marketCap models.Node
	if profile.MarketCapitalization != nil && float64(*profile.MarketCapitalization) > 0 {
		// Vendor-reported capitalization wins over the price * shares product.
		// ADR listings report underlying share counts while quoting the
		// per-ADR price, so the product can be off by the depositary ratio;
		// the vendor figure is not.
		mcap := &models.MarketValue{
			ValueHeader: models.ValueHeader{
				Metric: "market_cap",
				Value:  models.Float(float64(*profile.MarketCapitalization) * 1e6),
				Unit:   models.UnitUSD,
			},
			Vendor:    vendorName,
			Symbol:    symbol,
			Endpoint:  "profile2",
			FetchedAt: now,
		}
		if c.keepRaw {
			mcap.Raw = profileRaw
		}
		marketCap = mcap
	} else {
		var product *float64
		if priceMV.Value != nil && sharesMV.Value != nil {
			product = models.Float(*priceMV.Value * *sharesMV.Value)
		}
		// Component warnings (invalid price, missing shares) merge onto the
		// computed value, so a nil market cap explains itself.
		marketCap = models.NewComputedValue("market_cap", product, models.UnitUSD,
			"price * shares_outstanding",
			map[string]models.Node{"price": priceMV, "shares_outstanding": sharesMV})
	}

	return &models.MarketSnapshot{
		Symbol:            symbol,
		CompanyName:       profile.Name,
		Price:             priceMV,
		SharesOutstanding: sharesMV,
		MarketCap:         marketCap,
		FetchedAt:         now,
	}
}

// parsePositivePrice sanitizes the quote price: it must be finite and
// strictly positive. Anything else is nil with the invalid-price warning.
func parsePositivePrice(raw *flexFloat) (*float64, []string) {
	if raw == nil {
		return nil, []string{"invalid quote price"}
	}
	v := float64(*raw)
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, []string{"invalid quote price"}
	}
	return models.Float(v), nil
}

// parseShareCount converts the profile shareOutstanding field, reported in
// millions, to an absolute count. Some vendor responses already carry absolute
// counts, so magnitude decides:
//   - < 1,000 looks like millions: multiply by 1e6
//   - > 1,000,000 looks like an absolute count: use directly
//   - in between is ambiguous: treat as millions with a warning
func parseShareCount(raw *flexFloat) (*float64, []string) {
	if raw == nil {
		return nil, []string{"shares outstanding unavailable"}
	}
	v := float64(*raw)
	switch {
	case v <= 0 || math.IsNaN(v) || math.IsInf(v, 0):
		return nil, []string{fmt.Sprintf("Negative or zero shares outstanding (%g)", v)}
	case v < 1_000:
		return models.Float(v * 1e6), nil
	case v > 1_000_000:
		return models.Float(v), nil
	default:
		return models.Float(v * 1e6), []string{"ambiguous share count magnitude"}
	}
}
