package analysis

import (
	"fmt"
	"strings"

	"github.com/bobmcallan/handspread/internal/models"
)

// bridgeTerm is one policy-applied leg of the enterprise value walk.
type bridgeTerm struct {
	role     string
	cited    *models.CitedValue
	subtract bool
	assign   func(*models.EVBridge, *models.CitedValue)
}

// BuildEVBridge assembles the enterprise value walk from market cap and the
// cited balance-sheet items the policy selects. Missing cited components
// contribute zero with a warning; a missing market cap makes the whole bridge
// nil-valued since there is no anchor to walk from. Bridge component fields
// are set only for legs the policy actually applied.
func BuildEVBridge(market *models.MarketSnapshot, sec map[string]*models.CitedValue, policy models.EVPolicy) *models.EVBridge {
	bridge := &models.EVBridge{}

	var marketCap models.Node
	if market != nil && market.MarketCap != nil {
		marketCap = market.MarketCap
		bridge.MarketCap = marketCap
	}

	bridge.EquityValue = buildEquityValue(marketCap)
	bridge.NetDebt = buildNetDebt(sec)

	ccy, ccyWarnings := DetectSECCurrency(sec)
	if ccy != "" && ccy != "USD" {
		components := map[string]models.Node{}
		if marketCap != nil {
			components["market_cap"] = marketCap
		}
		warnings := append(ccyWarnings, fmt.Sprintf("EV bridge blocked: SEC currency %s ≠ USD market", ccy))
		bridge.EnterpriseValue = models.NewComputedValue("enterprise_value", nil, models.UnitUSD,
			"market_cap", components, warnings...)
		return bridge
	}

	terms := policyTerms(sec, policy)

	components := map[string]models.Node{}
	if marketCap != nil {
		components["market_cap"] = marketCap
	}
	formulaParts := []string{"market_cap"}
	warnings := append([]string{}, ccyWarnings...)

	if policy.DebtMode == models.DebtModeSplit &&
		ExtractSECValue(sec, "total_debt") != nil && ExtractSECValue(sec, "short_term_debt") != nil {
		warnings = append(warnings, "debt overlap: total_debt and short_term_debt both present in split mode")
	}

	total := 0.0
	computable := false
	if mcv := models.NodeValue(marketCap); mcv != nil {
		total = *mcv
		computable = true
	} else {
		warnings = append(warnings, "Market cap unavailable; cannot compute EV")
	}

	for _, term := range terms {
		op := "+"
		sign := 1.0
		if term.subtract {
			op = "-"
			sign = -1.0
		}
		formulaParts = append(formulaParts, op, term.role)

		if term.cited == nil || term.cited.Value == nil {
			warnings = append(warnings, fmt.Sprintf("%s missing, treated as 0", term.role))
			continue
		}
		components[term.role] = term.cited
		term.assign(bridge, term.cited)
		total += sign * *term.cited.Value
	}

	var value *float64
	if computable {
		value = models.Float(total)
	}

	bridge.EnterpriseValue = models.NewComputedValue("enterprise_value", value, models.UnitUSD,
		strings.Join(formulaParts, " "), components, warnings...)
	return bridge
}

// policyTerms lists the bridge legs the policy applies, in bridge order.
func policyTerms(sec map[string]*models.CitedValue, policy models.EVPolicy) []bridgeTerm {
	totalDebt := bridgeTerm{
		role:   "total_debt",
		cited:  ExtractSECValue(sec, "total_debt"),
		assign: func(b *models.EVBridge, cv *models.CitedValue) { b.TotalDebt = cv },
	}
	shortTermDebt := bridgeTerm{
		role:   "short_term_debt",
		cited:  ExtractSECValue(sec, "short_term_debt"),
		assign: func(b *models.EVBridge, cv *models.CitedValue) { b.ShortTermDebt = cv },
	}

	var terms []bridgeTerm
	switch policy.DebtMode {
	case models.DebtModeSplit, models.DebtModeTotalPlusShortTerm:
		terms = append(terms, totalDebt, shortTermDebt)
	default: // total_only is overlap-safe: short_term_debt never enters
		terms = append(terms, totalDebt)
	}

	if policy.IncludeLeases {
		terms = append(terms, bridgeTerm{
			role:   "operating_lease_liabilities",
			cited:  ExtractSECValue(sec, "operating_lease_liabilities"),
			assign: func(b *models.EVBridge, cv *models.CitedValue) { b.OperatingLeaseLiabilities = cv },
		})
	}
	if policy.IncludePreferred {
		terms = append(terms, bridgeTerm{
			role:   "preferred_stock",
			cited:  ExtractSECValue(sec, "preferred_stock"),
			assign: func(b *models.EVBridge, cv *models.CitedValue) { b.PreferredStock = cv },
		})
	}
	if policy.IncludeNCI {
		terms = append(terms, bridgeTerm{
			role:   "noncontrolling_interests",
			cited:  ExtractSECValue(sec, "noncontrolling_interests"),
			assign: func(b *models.EVBridge, cv *models.CitedValue) { b.NoncontrollingInterests = cv },
		})
	}
	if policy.SubtractCash {
		terms = append(terms, bridgeTerm{
			role:     "cash",
			cited:    ExtractSECValue(sec, "cash"),
			subtract: true,
			assign:   func(b *models.EVBridge, cv *models.CitedValue) { b.CashAndEquivalents = cv },
		})
	}
	if policy.SubtractMarketableSecurities {
		terms = append(terms, bridgeTerm{
			role:     "marketable_securities",
			cited:    ExtractSECValue(sec, "marketable_securities"),
			subtract: true,
			assign:   func(b *models.EVBridge, cv *models.CitedValue) { b.MarketableSecurities = cv },
		})
	}
	if policy.SubtractEquityMethodInvestments {
		terms = append(terms, bridgeTerm{
			role:     "equity_method_investments",
			cited:    ExtractSECValue(sec, "equity_method_investments"),
			subtract: true,
			assign:   func(b *models.EVBridge, cv *models.CitedValue) { b.EquityMethodInvestments = cv },
		})
	}

	return terms
}

// buildEquityValue restates market cap as the equity leg of the bridge.
func buildEquityValue(marketCap models.Node) *models.ComputedValue {
	if marketCap == nil {
		return nil
	}
	components := map[string]models.Node{"market_cap": marketCap}
	return models.NewComputedValue("equity_value", models.NodeValue(marketCap), models.UnitUSD,
		"market_cap", components)
}

// buildNetDebt derives total_debt - cash - marketable_securities over the
// cited subset that exists, independent of the bridge policy. SEC-only
// arithmetic, so it stays meaningful even when the EV bridge itself is
// currency-blocked.
func buildNetDebt(sec map[string]*models.CitedValue) *models.ComputedValue {
	totalDebt := ExtractSECValue(sec, "total_debt")
	cash := ExtractSECValue(sec, "cash")
	securities := ExtractSECValue(sec, "marketable_securities")

	present := func(cv *models.CitedValue) bool { return cv != nil && cv.Value != nil }
	if !present(totalDebt) && !present(cash) && !present(securities) {
		return nil
	}

	unit := models.UnitUSD
	components := map[string]models.Node{}
	var formulaParts []string
	total := 0.0

	if present(totalDebt) {
		components["total_debt"] = totalDebt
		formulaParts = append(formulaParts, "total_debt")
		total += *totalDebt.Value
		if totalDebt.Unit != "" {
			unit = totalDebt.Unit
		}
	} else {
		formulaParts = append(formulaParts, "0")
	}
	if present(cash) {
		components["cash"] = cash
		formulaParts = append(formulaParts, "-", "cash")
		total -= *cash.Value
		if !present(totalDebt) && cash.Unit != "" {
			unit = cash.Unit
		}
	}
	if present(securities) {
		components["marketable_securities"] = securities
		formulaParts = append(formulaParts, "-", "marketable_securities")
		total -= *securities.Value
	}

	return models.NewComputedValue("net_debt", models.Float(total), unit,
		strings.Join(formulaParts, " "), components)
}
