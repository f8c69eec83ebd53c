package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/handspread/internal/models"
)

func TestBuildEVBridge_Simple(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt": cited(500_000),
		"cash":       cited(200_000),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue)
	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000-200_000, *bridge.EnterpriseValue.Value)
	assert.Contains(t, bridge.EnterpriseValue.Components, "market_cap")
	assert.Contains(t, bridge.EnterpriseValue.Components, "total_debt")
	assert.Contains(t, bridge.EnterpriseValue.Components, "cash")
}

func TestBuildEVBridge_FormulaListsBridgeOrder(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt": cited(500_000),
		"cash":       cited(200_000),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	// Default policy applies debt, preferred, NCI, cash, and securities.
	assert.Equal(t,
		"market_cap + total_debt + preferred_stock + noncontrolling_interests - cash - marketable_securities",
		bridge.EnterpriseValue.Formula)
}

func TestBuildEVBridge_MissingDebtTreatedAsZero(t *testing.T) {
	market := snapshot(50.0, 2_000_000)
	sec := map[string]*models.CitedValue{"cash": cited(1_000_000)}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0-1_000_000, *bridge.EnterpriseValue.Value)
	assert.Contains(t, bridge.EnterpriseValue.Warnings, "total_debt missing, treated as 0")
}

func TestBuildEVBridge_MissingCashTreatedAsZero(t *testing.T) {
	market := snapshot(50.0, 2_000_000)
	sec := map[string]*models.CitedValue{"total_debt": cited(5_000_000)}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+5_000_000, *bridge.EnterpriseValue.Value)
	assert.Contains(t, bridge.EnterpriseValue.Warnings, "cash missing, treated as 0")
}

func TestBuildEVBridge_IncludesLeases(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":                  cited(500_000),
		"cash":                        cited(200_000),
		"operating_lease_liabilities": cited(300_000),
	}
	policy := models.DefaultEVPolicy()
	policy.IncludeLeases = true

	bridge := BuildEVBridge(market, sec, policy)

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000-200_000+300_000, *bridge.EnterpriseValue.Value)
	assert.NotNil(t, bridge.OperatingLeaseLiabilities)
}

func TestBuildEVBridge_LeaseMissingWarns(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt": cited(500_000),
		"cash":       cited(200_000),
	}
	policy := models.DefaultEVPolicy()
	policy.IncludeLeases = true

	bridge := BuildEVBridge(market, sec, policy)

	found := false
	for _, w := range bridge.EnterpriseValue.Warnings {
		if assert.ObjectsAreEqual("operating_lease_liabilities missing, treated as 0", w) {
			found = true
		}
	}
	assert.True(t, found, "expected lease-missing warning, got %v", bridge.EnterpriseValue.Warnings)
}

func TestBuildEVBridge_SplitModeWarnsOverlap(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":      cited(500_000),
		"short_term_debt": cited(100_000),
		"cash":            cited(200_000),
	}
	policy := models.DefaultEVPolicy()
	policy.DebtMode = models.DebtModeSplit

	bridge := BuildEVBridge(market, sec, policy)

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000+100_000-200_000, *bridge.EnterpriseValue.Value)

	found := false
	for _, w := range bridge.EnterpriseValue.Warnings {
		if contains := w; len(contains) > 0 && assert.ObjectsAreEqual(true, containsSubstring(w, "overlap")) {
			found = true
		}
	}
	assert.True(t, found, "expected overlap warning, got %v", bridge.EnterpriseValue.Warnings)
}

func TestBuildEVBridge_TotalOnlyIgnoresShortTerm(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":      cited(500_000),
		"short_term_debt": cited(100_000),
		"cash":            cited(0),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000, *bridge.EnterpriseValue.Value)
	assert.Nil(t, bridge.ShortTermDebt, "short_term_debt is not applied in total_only mode")
}

func TestBuildEVBridge_CashNotSubtractedWhenDisabled(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":            cited(500_000),
		"cash":                  cited(200_000),
		"marketable_securities": cited(50_000),
	}
	policy := models.DefaultEVPolicy()
	policy.SubtractCash = false
	policy.SubtractMarketableSecurities = false

	bridge := BuildEVBridge(market, sec, policy)

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000, *bridge.EnterpriseValue.Value)
	assert.Nil(t, bridge.CashAndEquivalents, "skipped legs leave component references unset")
	assert.Nil(t, bridge.MarketableSecurities)
}

func TestBuildEVBridge_EquityMethodInvestmentsSubtracted(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":                cited(500_000),
		"cash":                      cited(200_000),
		"equity_method_investments": cited(100_000),
	}
	policy := models.DefaultEVPolicy()
	policy.SubtractEquityMethodInvestments = true

	bridge := BuildEVBridge(market, sec, policy)

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000-200_000-100_000, *bridge.EnterpriseValue.Value)
	assert.NotNil(t, bridge.EquityMethodInvestments)
}

func TestBuildEVBridge_CombinedAdjustments(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":                  cited(500_000),
		"cash":                        cited(200_000),
		"operating_lease_liabilities": cited(300_000),
		"preferred_stock":             cited(50_000),
		"noncontrolling_interests":    cited(25_000),
	}
	policy := models.DefaultEVPolicy()
	policy.IncludeLeases = true

	bridge := BuildEVBridge(market, sec, policy)

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000-200_000+300_000+50_000+25_000, *bridge.EnterpriseValue.Value)
}

func TestBuildEVBridge_NetDebt(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt":            cited(800_000),
		"cash":                  cited(200_000),
		"marketable_securities": cited(100_000),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.NetDebt)
	require.NotNil(t, bridge.NetDebt.Value)
	assert.Equal(t, 500_000.0, *bridge.NetDebt.Value)
}

func TestBuildEVBridge_CurrencyMismatchBlocksEV(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt": citedIn(4_000_000_000_000, "JPY"),
		"cash":       citedIn(500_000_000_000, "JPY"),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue)
	assert.Nil(t, bridge.EnterpriseValue.Value)
	assert.Contains(t, bridge.EnterpriseValue.Warnings, "EV bridge blocked: SEC currency JPY ≠ USD market")

	// Equity value is the USD market side and stays populated.
	require.NotNil(t, bridge.EquityValue)
	require.NotNil(t, bridge.EquityValue.Value)
	assert.Equal(t, 100_000_000.0, *bridge.EquityValue.Value)

	// Net debt is SEC-only arithmetic and stays meaningful in JPY.
	require.NotNil(t, bridge.NetDebt)
	assert.Equal(t, "JPY", bridge.NetDebt.Unit)
}

func TestBuildEVBridge_USDComputesNormally(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	sec := map[string]*models.CitedValue{
		"total_debt": citedIn(500_000, "USD"),
		"cash":       citedIn(200_000, "USD"),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.Equal(t, 100_000_000.0+500_000-200_000, *bridge.EnterpriseValue.Value)
}

func TestBuildEVBridge_NilMarketCap(t *testing.T) {
	market := snapshot(100.0, 1_000_000)
	market.MarketCap = models.NewComputedValue("market_cap", nil, models.UnitUSD,
		"price * shares_outstanding", nil, "invalid quote price")
	sec := map[string]*models.CitedValue{
		"total_debt": cited(500_000),
		"cash":       cited(200_000),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue)
	assert.Nil(t, bridge.EnterpriseValue.Value)
	assert.Contains(t, bridge.EnterpriseValue.Warnings, "Market cap unavailable; cannot compute EV")
}

func TestBuildEVBridge_NoMarketSnapshot(t *testing.T) {
	sec := map[string]*models.CitedValue{"total_debt": cited(500_000)}

	bridge := BuildEVBridge(nil, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue)
	assert.Nil(t, bridge.EnterpriseValue.Value)
	assert.Nil(t, bridge.EquityValue)
	require.NotNil(t, bridge.NetDebt)
	assert.Equal(t, 500_000.0, *bridge.NetDebt.Value)
}

func TestBuildEVBridge_HappyPathScenario(t *testing.T) {
	// Mega-cap: EV = 4,422.6B + 8.5B - 11.5B - 49.1B = 4,370.5B.
	market := snapshot(100.0, 1_000_000)
	market.MarketCap = models.NewComputedValue("market_cap", models.Float(4_422.6e9), models.UnitUSD,
		"price * shares_outstanding", nil)
	sec := map[string]*models.CitedValue{
		"total_debt":            cited(8.5e9),
		"cash":                  cited(11.5e9),
		"marketable_securities": cited(49.1e9),
	}

	bridge := BuildEVBridge(market, sec, models.DefaultEVPolicy())

	require.NotNil(t, bridge.EnterpriseValue.Value)
	assert.InDelta(t, 4_370.5e9, *bridge.EnterpriseValue.Value, 1e6)
}

func containsSubstring(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
