package comps

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/handspread/internal/interfaces"
	"github.com/bobmcallan/handspread/internal/models"
)

// stubSEC serves canned SECResults keyed by symbol and period.
type stubSEC struct {
	results map[string]map[string]*models.SECResult
	errs    map[string]error
	delay   time.Duration
}

func (s *stubSEC) GetCompanyMetrics(ctx context.Context, symbol, period string) (*models.SECResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	periods := s.results[symbol]
	if periods == nil {
		return nil, fmt.Errorf("no SEC data for %s", symbol)
	}
	result, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("period %q not available for %s", period, symbol)
	}
	return result, nil
}

func (s *stubSEC) GetCompanyName(ctx context.Context, symbol string) (string, error) {
	if periods := s.results[symbol]; periods != nil {
		for _, r := range periods {
			return r.EntityName, nil
		}
	}
	return "", fmt.Errorf("unknown symbol %s", symbol)
}

// stubMarket serves canned snapshots, optionally failing or blocking until
// the context expires.
type stubMarket struct {
	snaps map[string]*models.MarketSnapshot
	errs  map[string]error
	block bool
}

func (m *stubMarket) FetchSnapshot(ctx context.Context, symbol string) (*models.MarketSnapshot, error) {
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := m.errs[symbol]; err != nil {
		return nil, err
	}
	snap, ok := m.snaps[symbol]
	if !ok {
		return nil, fmt.Errorf("no market data for %s", symbol)
	}
	return snap, nil
}

func cited(metric string, value float64) *models.CitedValue {
	return citedIn(metric, value, models.UnitUSD)
}

func citedIn(metric string, value float64, unit string) *models.CitedValue {
	return &models.CitedValue{
		ValueHeader: models.ValueHeader{Metric: metric, Value: models.Float(value), Unit: unit},
		Concept:     "Test" + metric,
	}
}

func vendorSnapshot(symbol, name string, marketCap float64) *models.MarketSnapshot {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	price := &models.MarketValue{
		ValueHeader: models.ValueHeader{Metric: "price", Value: models.Float(100), Unit: models.UnitUSD},
		Vendor:      "finnhub", Symbol: symbol, Endpoint: "quote", FetchedAt: now,
	}
	shares := &models.MarketValue{
		ValueHeader: models.ValueHeader{Metric: "shares_outstanding", Value: models.Float(marketCap / 100), Unit: models.UnitShares},
		Vendor:      "finnhub", Symbol: symbol, Endpoint: "profile2", FetchedAt: now,
	}
	mcap := &models.MarketValue{
		ValueHeader: models.ValueHeader{Metric: "market_cap", Value: models.Float(marketCap), Unit: models.UnitUSD},
		Vendor:      "finnhub", Symbol: symbol, Endpoint: "profile2", FetchedAt: now,
	}
	return &models.MarketSnapshot{
		Symbol: symbol, CompanyName: name,
		Price: price, SharesOutstanding: shares, MarketCap: mcap, FetchedAt: now,
	}
}

func secPeriods(ltm, prior map[string]*models.CitedValue) map[string]*models.SECResult {
	return map[string]*models.SECResult{
		"ltm":   {EntityName: "Test Corp", CIK: "0000123456", FiscalYearEnd: "12-31", Metrics: ltm},
		"ltm-1": {EntityName: "Test Corp", CIK: "0000123456", FiscalYearEnd: "12-31", Metrics: prior},
	}
}

func newTestService(sec interfaces.SECClient, market interfaces.MarketClient) *Service {
	return NewService(sec, market, nil)
}

func TestAnalyzeComps_EmptyInput(t *testing.T) {
	svc := newTestService(&stubSEC{}, &stubMarket{})

	_, err := svc.AnalyzeComps(context.Background(), nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = svc.AnalyzeComps(context.Background(), []string{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAnalyzeComps_InvalidPolicy(t *testing.T) {
	svc := newTestService(&stubSEC{}, &stubMarket{})

	policy := models.DefaultEVPolicy()
	policy.DebtMode = "gross_everything"

	_, err := svc.AnalyzeComps(context.Background(), []string{"AAPL"},
		interfaces.WithEVPolicy(policy))
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.ErrorContains(t, err, "debt_mode")
}

func TestAnalyzeComps_HappyPathSingleTicker(t *testing.T) {
	ltm := map[string]*models.CitedValue{
		"revenue":               cited("revenue", 187.0e9),
		"total_debt":            cited("total_debt", 8.5e9),
		"cash":                  cited("cash", 11.5e9),
		"marketable_securities": cited("marketable_securities", 49.1e9),
	}
	sec := &stubSEC{results: map[string]map[string]*models.SECResult{
		"NVDA": secPeriods(ltm, map[string]*models.CitedValue{"revenue": cited("revenue", 130.5e9)}),
	}}
	market := &stubMarket{snaps: map[string]*models.MarketSnapshot{
		"NVDA": vendorSnapshot("NVDA", "NVIDIA Corp", 4422.6e9),
	}}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"NVDA"})
	require.NoError(t, err)
	require.Len(t, results, 1)

	ca := results[0]
	assert.Empty(t, ca.Errors)
	assert.Equal(t, "Test Corp", ca.CompanyName) // SEC entity name wins
	assert.Equal(t, "0000123456", ca.CIK)

	require.NotNil(t, ca.EVBridge)
	require.NotNil(t, ca.EVBridge.EnterpriseValue.Value)
	assert.InDelta(t, 4370.5e9, *ca.EVBridge.EnterpriseValue.Value, 1)

	evRevenue := ca.Multiples["ev_revenue"]
	require.NotNil(t, evRevenue)
	require.NotNil(t, evRevenue.Value)
	assert.InDelta(t, 23.37, *evRevenue.Value, 0.01)

	growth := ca.Growth["revenue_yoy"]
	require.NotNil(t, growth)
	require.NotNil(t, growth.Value)
	assert.InDelta(t, (187.0-130.5)/130.5, *growth.Value, 1e-9)
}

func TestAnalyzeComps_ResultsPreserveInputOrder(t *testing.T) {
	tickers := []string{"MSFT", "AAPL", "GOOG", "AMZN"}
	secResults := make(map[string]map[string]*models.SECResult)
	snaps := make(map[string]*models.MarketSnapshot)
	for _, sym := range tickers {
		secResults[sym] = secPeriods(
			map[string]*models.CitedValue{"revenue": cited("revenue", 1e9)},
			map[string]*models.CitedValue{"revenue": cited("revenue", 0.9e9)},
		)
		snaps[sym] = vendorSnapshot(sym, sym+" Inc", 1e10)
	}
	svc := newTestService(
		&stubSEC{results: secResults, delay: time.Millisecond},
		&stubMarket{snaps: snaps},
	)

	results, err := svc.AnalyzeComps(context.Background(), tickers)
	require.NoError(t, err)
	require.Len(t, results, len(tickers))
	for i, sym := range tickers {
		assert.Equal(t, sym, results[i].Symbol)
	}
}

func TestAnalyzeComps_MarketStreamFailureIsolated(t *testing.T) {
	ltm := map[string]*models.CitedValue{
		"revenue":    cited("revenue", 100e6),
		"net_income": cited("net_income", 20e6),
	}
	sec := &stubSEC{results: map[string]map[string]*models.SECResult{
		"X": secPeriods(ltm, map[string]*models.CitedValue{"revenue": cited("revenue", 80e6)}),
	}}
	market := &stubMarket{errs: map[string]error{"X": errors.New("vendor unavailable")}}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"X"})
	require.NoError(t, err)
	ca := results[0]

	require.Len(t, ca.Errors, 1)
	assert.Equal(t, "market", ca.Errors[0].Stage)
	assert.Equal(t, models.ErrorKindUpstreamFailure, ca.Errors[0].Kind)

	// SEC-derived operating metrics survive.
	assert.NotNil(t, ca.Operating["net_margin"])

	// Market-dependent multiples are present but nil-valued.
	pe := ca.Multiples["pe"]
	require.NotNil(t, pe)
	assert.Nil(t, pe.Value)
}

func TestAnalyzeComps_TimeoutRecordedPerTicker(t *testing.T) {
	sec := &stubSEC{results: map[string]map[string]*models.SECResult{
		"SLOW": secPeriods(
			map[string]*models.CitedValue{"revenue": cited("revenue", 50e6)},
			map[string]*models.CitedValue{"revenue": cited("revenue", 40e6)},
		),
	}}
	market := &stubMarket{block: true}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"SLOW"},
		interfaces.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	ca := results[0]

	require.Len(t, ca.Errors, 1)
	assert.Equal(t, "market", ca.Errors[0].Stage)
	assert.Equal(t, models.ErrorKindTimeout, ca.Errors[0].Kind)

	// The SEC streams completed, so operating metrics are still there.
	assert.NotEmpty(t, ca.Operating)
	assert.NotEmpty(t, ca.Growth)
}

func TestAnalyzeComps_CurrencyBlockedMultiples(t *testing.T) {
	ltm := map[string]*models.CitedValue{
		"revenue": citedIn("revenue", 500e9, "CNY"),
	}
	sec := &stubSEC{results: map[string]map[string]*models.SECResult{
		"BABA": secPeriods(ltm, map[string]*models.CitedValue{"revenue": citedIn("revenue", 450e9, "CNY")}),
	}}
	market := &stubMarket{snaps: map[string]*models.MarketSnapshot{
		"BABA": vendorSnapshot("BABA", "Alibaba", 200e9),
	}}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"BABA"})
	require.NoError(t, err)
	ca := results[0]

	// EV bridge fails closed for a non-USD filer.
	require.NotNil(t, ca.EVBridge)
	assert.Nil(t, ca.EVBridge.EnterpriseValue.Value)
	assert.Contains(t, ca.EVBridge.EnterpriseValue.Warnings,
		"EV bridge blocked: SEC currency CNY ≠ USD market")

	evRevenue := ca.Multiples["ev_revenue"]
	require.NotNil(t, evRevenue)
	assert.Nil(t, evRevenue.Value)
	assert.Contains(t, evRevenue.Warnings, "currency mismatch: CNY cited vs USD market")

	// SEC-only growth is unaffected by the currency boundary.
	require.NotNil(t, ca.Growth["revenue_yoy"])
	assert.NotNil(t, ca.Growth["revenue_yoy"].Value)
}

func TestAnalyzeComps_SplitContaminationSkipsGrowth(t *testing.T) {
	eps := cited("eps_diluted", 6.1)
	eps.Warnings = []string{"Possible stock split contamination (ltm 6.10 vs annual 0.61)"}
	ltm := map[string]*models.CitedValue{
		"revenue":     cited("revenue", 100e6),
		"eps_diluted": eps,
	}
	prior := map[string]*models.CitedValue{
		"revenue":     cited("revenue", 90e6),
		"eps_diluted": cited("eps_diluted", 0.55),
	}
	sec := &stubSEC{results: map[string]map[string]*models.SECResult{
		"SPLT": secPeriods(ltm, prior),
	}}
	market := &stubMarket{snaps: map[string]*models.MarketSnapshot{
		"SPLT": vendorSnapshot("SPLT", "Split Corp", 1e9),
	}}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"SPLT"})
	require.NoError(t, err)
	ca := results[0]

	epsGrowth := ca.Growth["eps_diluted_yoy"]
	require.NotNil(t, epsGrowth)
	assert.Nil(t, epsGrowth.Value)
	assert.Contains(t, epsGrowth.Warnings, "skipped: stock split contamination")

	// Non-per-share growth is unaffected.
	require.NotNil(t, ca.Growth["revenue_yoy"])
	assert.NotNil(t, ca.Growth["revenue_yoy"].Value)
}

func TestAnalyzeComps_CompanyNameFallbacks(t *testing.T) {
	// SEC stream fails: market profile name is used.
	sec := &stubSEC{errs: map[string]error{"MKT": errors.New("edgar down")}}
	market := &stubMarket{snaps: map[string]*models.MarketSnapshot{
		"MKT": vendorSnapshot("MKT", "Market Name Inc", 1e9),
	}}
	svc := newTestService(sec, market)

	results, err := svc.AnalyzeComps(context.Background(), []string{"MKT"})
	require.NoError(t, err)
	assert.Equal(t, "Market Name Inc", results[0].CompanyName)

	// Both streams fail: the symbol stands in.
	svc = newTestService(
		&stubSEC{errs: map[string]error{"NONE": errors.New("edgar down")}},
		&stubMarket{errs: map[string]error{"NONE": errors.New("vendor down")}},
	)
	results, err = svc.AnalyzeComps(context.Background(), []string{"none"})
	require.NoError(t, err)
	assert.Equal(t, "NONE", results[0].CompanyName)
	assert.Len(t, results[0].Errors, 3) // both SEC periods + market
}

func TestRunStage_PanicBecomesError(t *testing.T) {
	svc := newTestService(&stubSEC{}, &stubMarket{})
	ca := &models.CompanyAnalysis{Symbol: "PANIC"}

	svc.runStage(ca, "multiples", func() { panic("boom") })

	require.Len(t, ca.Errors, 1)
	assert.Equal(t, "multiples", ca.Errors[0].Stage)
	assert.Equal(t, models.ErrorKindInternal, ca.Errors[0].Kind)
	assert.Contains(t, ca.Errors[0].Message, "boom")
}

func TestPeriodMinus1(t *testing.T) {
	tests := map[string]string{
		"ltm":         "ltm-1",
		"annual:2024": "annual:2023",
		"annual:x":    "annual:x-1",
		"quarterly":   "quarterly-1",
	}
	for in, want := range tests {
		assert.Equal(t, want, periodMinus1(in), "periodMinus1(%q)", in)
	}
}
