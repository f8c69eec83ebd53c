package analysis

import (
	"fmt"
	"math"

	"github.com/bobmcallan/handspread/internal/models"
)

// ComputeMultiples derives the valuation multiples and yields for one company.
// All nine keys are always present; a blocked or uncomputable multiple carries
// a nil value and the warning explaining why. The adjusted EBITDA denominator
// itself rides along under "adjusted_ebitda" so callers can see the SBC
// adjustment that fed ev_ebitda.
func ComputeMultiples(ev *models.ComputedValue, market *models.MarketSnapshot, sec map[string]*models.CitedValue, adjusted *models.ComputedValue) map[string]*models.ComputedValue {
	revenue := ExtractSECValue(sec, "revenue")
	ebitda := ExtractSECValue(sec, "ebitda")
	operatingIncome := ExtractSECValue(sec, "operating_income")
	netIncome := ExtractSECValue(sec, "net_income")
	equity := ExtractSECValue(sec, "stockholders_equity")
	dividends := ExtractSECValue(sec, "dividends_per_share")
	fcf := DeriveFreeCashFlow(sec)

	evNode := computedNode(ev)
	var marketCap, price models.Node
	if market != nil {
		marketCap = market.MarketCap
		if market.Price != nil {
			price = market.Price
		}
	}

	multiples := map[string]*models.ComputedValue{
		"ev_revenue":     safeDivide("ev_revenue", "enterprise_value / revenue", evNode, citedNode(revenue), models.UnitMultiple),
		"ev_ebitda":      safeDivide("ev_ebitda", "enterprise_value / adjusted_ebitda", evNode, computedNode(adjusted), models.UnitMultiple),
		"ev_ebitda_gaap": safeDivide("ev_ebitda_gaap", "enterprise_value / ebitda", evNode, citedNode(ebitda), models.UnitMultiple),
		"ev_ebit":        safeDivide("ev_ebit", "enterprise_value / operating_income", evNode, citedNode(operatingIncome), models.UnitMultiple),
		"ev_fcf":         safeDivide("ev_fcf", "enterprise_value / free_cash_flow", evNode, computedNode(fcf), models.UnitMultiple),
		"pe":             safeDivide("pe", "market_cap / net_income", marketCap, citedNode(netIncome), models.UnitMultiple),
		"pb":             safeDivide("pb", "market_cap / stockholders_equity", marketCap, citedNode(equity), models.UnitMultiple),
		"fcf_yield":      safeDivide("fcf_yield", "free_cash_flow / market_cap", computedNode(fcf), marketCap, models.UnitPercent),
		"dividend_yield": safeDivide("dividend_yield", "dividends_per_share / price", citedNode(dividends), price, models.UnitPercent),
	}

	if adjusted != nil && adjusted.Value != nil {
		multiples["adjusted_ebitda"] = adjusted
	}

	return multiples
}

// safeDivide builds a ratio ComputedValue with the currency gate and the
// divide-by-zero, missing-operand, and negative-denominator rules applied.
// Warnings never raise; they ride on the produced value.
func safeDivide(metric, formula string, numerator, denominator models.Node, unit string, extraWarnings ...string) *models.ComputedValue {
	components := map[string]models.Node{}
	if numerator != nil {
		components["numerator"] = numerator
	}
	if denominator != nil {
		components["denominator"] = denominator
	}

	warnings := append([]string{}, extraWarnings...)

	// Currency gate before any arithmetic. Market inputs are USD by contract,
	// so a non-USD side anywhere in the ratio blocks it.
	for _, side := range []models.Node{numerator, denominator} {
		if side == nil {
			continue
		}
		ccy := models.CurrencyOf(side.Header().Unit)
		if ccy != "" && ccy != "USD" {
			warnings = append(warnings, fmt.Sprintf("currency mismatch: %s cited vs USD market", ccy))
			return models.NewComputedValue(metric, nil, unit, formula, components, warnings...)
		}
	}

	num := models.NodeValue(numerator)
	den := models.NodeValue(denominator)

	if num == nil {
		warnings = append(warnings, "Numerator unavailable")
	}
	if den == nil {
		warnings = append(warnings, "Denominator unavailable")
	}
	if num == nil || den == nil {
		return models.NewComputedValue(metric, nil, unit, formula, components, warnings...)
	}

	if math.IsNaN(*num) || math.IsInf(*num, 0) || math.IsNaN(*den) || math.IsInf(*den, 0) {
		return models.NewComputedValue(metric, nil, unit, formula, components, warnings...)
	}

	if *den == 0 {
		warnings = append(warnings, "Denominator is zero")
		return models.NewComputedValue(metric, nil, unit, formula, components, warnings...)
	}
	if *den < 0 {
		warnings = append(warnings, fmt.Sprintf("Negative denominator (%g); result may be misleading", *den))
	}

	result := *num / *den
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return models.NewComputedValue(metric, nil, unit, formula, components, warnings...)
	}

	return models.NewComputedValue(metric, models.Float(result), unit, formula, components, warnings...)
}

// citedNode converts a possibly-nil cited value to a Node without producing a
// typed-nil interface.
func citedNode(cv *models.CitedValue) models.Node {
	if cv == nil {
		return nil
	}
	return cv
}

// computedNode is citedNode for computed values.
func computedNode(cv *models.ComputedValue) models.Node {
	if cv == nil {
		return nil
	}
	return cv
}
