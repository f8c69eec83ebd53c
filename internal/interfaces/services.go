// Package interfaces defines service contracts for Handspread
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/handspread/internal/models"
)

// CompsService assembles comparable-company analyses
type CompsService interface {
	// AnalyzeComps builds a CompanyAnalysis for each requested ticker.
	// Tickers are analyzed concurrently; results preserve input order.
	AnalyzeComps(ctx context.Context, tickers []string, opts ...AnalyzeOption) ([]*models.CompanyAnalysis, error)
}

// AnalyzeOption configures an analysis run
type AnalyzeOption func(*AnalyzeParams)

// AnalyzeParams holds analysis run parameters
type AnalyzeParams struct {
	Period  string          // reporting period, e.g. "ltm" or "annual:2024"
	Policy  models.EVPolicy // enterprise value bridge policy
	Timeout time.Duration   // wall-clock budget for the whole run
	TaxRate float64         // tax rate applied when deriving NOPAT
}

// WithPeriod sets the reporting period for the run
func WithPeriod(period string) AnalyzeOption {
	return func(p *AnalyzeParams) {
		p.Period = period
	}
}

// WithEVPolicy sets the enterprise value bridge policy
func WithEVPolicy(policy models.EVPolicy) AnalyzeOption {
	return func(p *AnalyzeParams) {
		p.Policy = policy
	}
}

// WithTimeout sets the wall-clock budget for the run
func WithTimeout(timeout time.Duration) AnalyzeOption {
	return func(p *AnalyzeParams) {
		p.Timeout = timeout
	}
}

// WithTaxRate sets the tax rate used for NOPAT derivation
func WithTaxRate(rate float64) AnalyzeOption {
	return func(p *AnalyzeParams) {
		p.TaxRate = rate
	}
}
