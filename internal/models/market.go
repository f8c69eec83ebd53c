package models

import (
	"time"
)

// MarketSnapshot holds one vendor round-trip's view of a symbol: live price,
// share count, and market capitalization. The whole snapshot is cached as a
// unit so all three fields share a consistent FetchedAt.
type MarketSnapshot struct {
	Symbol            string       `json:"symbol"`
	CompanyName       string       `json:"company_name,omitempty"`
	Price             *MarketValue `json:"price"`
	SharesOutstanding *MarketValue `json:"shares_outstanding"`
	// MarketCap is a *MarketValue when the vendor reports capitalization
	// directly, or a *ComputedValue (price * shares_outstanding) otherwise.
	MarketCap Node      `json:"market_cap"`
	FetchedAt time.Time `json:"fetched_at"`
}

// MarketCapValue returns the market cap number, nil when unavailable.
func (s *MarketSnapshot) MarketCapValue() *float64 {
	if s == nil {
		return nil
	}
	return NodeValue(s.MarketCap)
}

// PriceValue returns the sanitized quote price, nil when unavailable.
func (s *MarketSnapshot) PriceValue() *float64 {
	if s == nil || s.Price == nil {
		return nil
	}
	return s.Price.Value
}

// SharesValue returns the absolute share count, nil when unavailable.
func (s *MarketSnapshot) SharesValue() *float64 {
	if s == nil || s.SharesOutstanding == nil {
		return nil
	}
	return s.SharesOutstanding.Value
}
