// Package interfaces defines service contracts for Handspread
package interfaces

import (
	"context"

	"github.com/bobmcallan/handspread/internal/models"
)

// MarketClient provides access to a market data vendor
type MarketClient interface {
	// FetchSnapshot retrieves the live quote and share count for a symbol
	// and derives market capitalization from them
	FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error)
}

// SECClient provides access to per-company SEC XBRL metric sets
type SECClient interface {
	// GetCompanyMetrics retrieves the cited metrics for a symbol and period
	GetCompanyMetrics(ctx context.Context, symbol, period string) (*models.SECResult, error)

	// GetCompanyName returns the registrant name for a symbol, or empty string
	GetCompanyName(ctx context.Context, symbol string) (string, error)
}
