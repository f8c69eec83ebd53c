// Package analysis derives enterprise value bridges, multiples, growth, and
// operating metrics from cited SEC facts and market snapshots. Every derived
// number is a ComputedValue whose components trace back to source values.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/bobmcallan/handspread/internal/models"
)

// crossCheckTolerance is the relative divergence allowed between a derived
// value and the reported concept before a warning is attached.
const crossCheckTolerance = 0.01

// ExtractSECValue looks up a cited metric by normalized name. Absent metrics
// and nil mappings return nil.
func ExtractSECValue(metrics map[string]*models.CitedValue, name string) *models.CitedValue {
	if metrics == nil {
		return nil
	}
	return metrics[name]
}

// DetectSECCurrency reads the currency of the cited values and returns the
// majority code. Mixed currencies within one company return the majority with
// a warning; no currency evidence returns an empty code.
func DetectSECCurrency(metrics map[string]*models.CitedValue) (string, []string) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	counts := make(map[string]int)
	var order []string
	for _, name := range names {
		cv := metrics[name]
		if cv == nil {
			continue
		}
		ccy := models.CurrencyOf(cv.Unit)
		if ccy == "" {
			continue
		}
		if counts[ccy] == 0 {
			order = append(order, ccy)
		}
		counts[ccy]++
	}

	if len(order) == 0 {
		return "", nil
	}

	majority := order[0]
	for _, ccy := range order[1:] {
		if counts[ccy] > counts[majority] {
			majority = ccy
		}
	}

	if len(order) > 1 {
		return majority, []string{fmt.Sprintf("mixed SEC currencies: majority %s", majority)}
	}
	return majority, nil
}

// IsCrossCurrency reports whether a cited value is denominated in a non-USD
// currency. Market inputs are USD by contract, so any such value cannot be
// mixed with market numbers.
func IsCrossCurrency(sec *models.CitedValue) bool {
	if sec == nil {
		return false
	}
	ccy := models.CurrencyOf(sec.Unit)
	return ccy != "" && ccy != "USD"
}

// ComputeAdjustedEBITDA derives SBC-adjusted EBITDA from operating income,
// depreciation and amortization, and stock-based compensation. When SBC is
// unavailable the result still computes and approximates GAAP EBITDA. When
// operating income or D&A is missing the value is nil.
func ComputeAdjustedEBITDA(oi, dna, sbc *models.CitedValue) *models.ComputedValue {
	if oi == nil && dna == nil && sbc == nil {
		return nil
	}

	components := make(map[string]models.Node)
	unit := models.UnitUSD
	if oi != nil {
		components["operating_income"] = oi
		if oi.Unit != "" {
			unit = oi.Unit
		}
	}
	if dna != nil {
		components["depreciation_amortization"] = dna
	}
	if sbc != nil {
		components["stock_based_compensation"] = sbc
	}

	if oi == nil || oi.Value == nil || dna == nil || dna.Value == nil {
		return models.NewComputedValue("adjusted_ebitda", nil, unit, "OI + D&A + SBC", components)
	}

	total := *oi.Value + *dna.Value
	var warnings []string
	if sbc != nil && sbc.Value != nil {
		total += *sbc.Value
	} else {
		warnings = append(warnings, "SBC unavailable; adjusted EBITDA ≈ GAAP EBITDA")
	}

	return models.NewComputedValue("adjusted_ebitda", models.Float(total), unit, "OI + D&A + SBC", components, warnings...)
}

// DeriveGrossProfit prefers revenue minus cost of revenue, cross-checking the
// result against any reported gross_profit concept. When the derivation inputs
// are missing it passes the reported value through. Nothing available returns
// nil.
func DeriveGrossProfit(metrics map[string]*models.CitedValue) *models.ComputedValue {
	return deriveWithCrossCheck(metrics, "gross_profit", "revenue", "cost_of_revenue")
}

// DeriveFreeCashFlow prefers operating cash flow minus capex, cross-checking
// against any reported free_cash_flow concept, with the same pass-through
// fallback as DeriveGrossProfit.
func DeriveFreeCashFlow(metrics map[string]*models.CitedValue) *models.ComputedValue {
	return deriveWithCrossCheck(metrics, "free_cash_flow", "operating_cash_flow", "capex")
}

func deriveWithCrossCheck(metrics map[string]*models.CitedValue, metric, minuendName, subtrahendName string) *models.ComputedValue {
	minuend := ExtractSECValue(metrics, minuendName)
	subtrahend := ExtractSECValue(metrics, subtrahendName)
	reported := ExtractSECValue(metrics, metric)

	formula := fmt.Sprintf("%s - %s", minuendName, subtrahendName)

	if minuend != nil && minuend.Value != nil && subtrahend != nil && subtrahend.Value != nil {
		derived := *minuend.Value - *subtrahend.Value
		unit := minuend.Unit
		if unit == "" {
			unit = models.UnitUSD
		}
		components := map[string]models.Node{
			minuendName:    minuend,
			subtrahendName: subtrahend,
		}

		var warnings []string
		if reported != nil && reported.Value != nil {
			if diverges, pct := crossCheck(derived, *reported.Value, crossCheckTolerance); diverges {
				warnings = append(warnings, fmt.Sprintf("computed %s (%s - %s) differs from reported %s by %.1f%%",
					metric, conceptOrName(minuend, minuendName), conceptOrName(subtrahend, subtrahendName),
					conceptOrName(reported, metric), pct*100))
			}
		}

		return models.NewComputedValue(metric, models.Float(derived), unit, formula, components, warnings...)
	}

	if reported != nil && reported.Value != nil {
		unit := reported.Unit
		if unit == "" {
			unit = models.UnitUSD
		}
		warning := fmt.Sprintf("%s pass-through from reported %s", metric, conceptOrName(reported, metric))
		return models.NewComputedValue(metric, models.Float(*reported.Value), unit, metric,
			map[string]models.Node{"reported": reported}, warning)
	}

	return nil
}

// crossCheck reports whether computed diverges from reported beyond the
// relative tolerance, along with the relative difference. A zero or non-finite
// reported value skips the check.
func crossCheck(computed, reported, tolerance float64) (bool, float64) {
	if reported == 0 || math.IsNaN(reported) || math.IsInf(reported, 0) {
		return false, 0
	}
	rel := math.Abs(computed-reported) / math.Abs(reported)
	return rel > tolerance, rel
}

func conceptOrName(cv *models.CitedValue, fallback string) string {
	if cv != nil && cv.Concept != "" {
		return cv.Concept
	}
	return fallback
}
