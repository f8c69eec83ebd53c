package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/bobmcallan/handspread/internal/models"
)

// splitContaminationMarker is attached upstream by the XBRL library when an
// LTM-derived per-share value diverges wildly from the latest annual figure.
// Growth only reads the marker; the detection threshold lives upstream.
const splitContaminationMarker = "Possible stock split contamination"

// growthMetrics are the YoY keys, in emission order. Derived metrics
// (gross_profit, adjusted_ebitda, free_cash_flow) are rebuilt per period so a
// filer that reports only components still gets growth.
var growthMetrics = []string{
	"revenue",
	"gross_profit",
	"operating_income",
	"ebitda",
	"adjusted_ebitda",
	"net_income",
	"eps_diluted",
	"depreciation_amortization",
	"free_cash_flow",
}

// perShareGrowthMetrics are the metrics subject to the split-contamination skip.
var perShareGrowthMetrics = map[string]bool{
	"eps_diluted": true,
}

// marginDeltaSpecs pair each margin-change key with its numerator metric.
var marginDeltaSpecs = []struct {
	margin    string
	numerator string
}{
	{"gross_margin", "gross_profit"},
	{"ebitda_margin", "ebitda"},
	{"adjusted_ebitda_margin", "adjusted_ebitda"},
}

// ComputeGrowth derives YoY relative changes and margin deltas from the two
// period mappings. Metrics missing on either side are omitted; data-quality
// conditions (zero prior, split contamination) emit nil-valued entries with
// warnings instead.
func ComputeGrowth(ltm, ltm1 map[string]*models.CitedValue) map[string]*models.ComputedValue {
	result := make(map[string]*models.ComputedValue)

	for _, metric := range growthMetrics {
		current := growthSource(ltm, metric)
		prior := growthSource(ltm1, metric)
		if cv := safeGrowth(metric, current, prior); cv != nil {
			result[metric+"_yoy"] = cv
		}
	}

	for _, spec := range marginDeltaSpecs {
		if cv := marginDelta(spec.margin, spec.numerator, ltm, ltm1); cv != nil {
			result[spec.margin+"_chg"] = cv
		}
	}

	return result
}

// growthSource resolves the per-period node for a growth metric, deriving the
// composite metrics through the same paths the other analysis stages use.
func growthSource(metrics map[string]*models.CitedValue, metric string) models.Node {
	switch metric {
	case "gross_profit":
		return computedNode(DeriveGrossProfit(metrics))
	case "adjusted_ebitda":
		return computedNode(ComputeAdjustedEBITDA(
			ExtractSECValue(metrics, "operating_income"),
			ExtractSECValue(metrics, "depreciation_amortization"),
			ExtractSECValue(metrics, "stock_based_compensation")))
	case "free_cash_flow":
		return computedNode(DeriveFreeCashFlow(metrics))
	default:
		return citedNode(ExtractSECValue(metrics, metric))
	}
}

// safeGrowth computes (current - prior) / |prior| with the split and
// zero-prior rules applied. Nil when either side is unavailable.
func safeGrowth(metric string, current, prior models.Node) *models.ComputedValue {
	currentVal := models.NodeValue(current)
	priorVal := models.NodeValue(prior)
	if currentVal == nil || priorVal == nil {
		return nil
	}

	formula := fmt.Sprintf("(%s_ltm - %s_ltm1) / abs(%s_ltm1)", metric, metric, metric)
	components := map[string]models.Node{
		"current": current,
		"prior":   prior,
	}

	if perShareGrowthMetrics[metric] && (hasSplitMarker(current) || hasSplitMarker(prior)) {
		return models.NewComputedValue(metric+"_yoy", nil, models.UnitPure, formula, components,
			"skipped: stock split contamination")
	}

	if *priorVal == 0 {
		return models.NewComputedValue(metric+"_yoy", nil, models.UnitPure, formula, components,
			"prior period is zero")
	}

	var warnings []string
	if *priorVal < 0 {
		warnings = append(warnings, fmt.Sprintf("prior period is negative (%g); growth computed on absolute value", *priorVal))
	}

	growth := (*currentVal - *priorVal) / math.Abs(*priorVal)
	return models.NewComputedValue(metric+"_yoy", models.Float(growth), models.UnitPure, formula, components, warnings...)
}

// marginDelta is the change in a revenue margin between the two periods,
// expressed as a decimal fraction. Either period's margin being uncomputable
// omits the key.
func marginDelta(margin, numerator string, ltm, ltm1 map[string]*models.CitedValue) *models.ComputedValue {
	current := periodMargin(margin, numerator, ltm)
	prior := periodMargin(margin, numerator, ltm1)
	if current == nil || prior == nil {
		return nil
	}

	delta := *current.Value - *prior.Value
	formula := fmt.Sprintf("%s_ltm - %s_ltm1", margin, margin)
	components := map[string]models.Node{
		"current": current,
		"prior":   prior,
	}

	return models.NewComputedValue(margin+"_chg", models.Float(delta), models.UnitPure, formula, components)
}

// periodMargin builds numerator/revenue for one period. Nil when revenue is
// missing or zero, or the numerator is unavailable.
func periodMargin(margin, numerator string, metrics map[string]*models.CitedValue) *models.ComputedValue {
	revenue := ExtractSECValue(metrics, "revenue")
	if revenue == nil || revenue.Value == nil || *revenue.Value == 0 {
		return nil
	}

	numNode := growthSource(metrics, numerator)
	numVal := models.NodeValue(numNode)
	if numVal == nil {
		return nil
	}

	components := map[string]models.Node{
		numerator: numNode,
		"revenue": revenue,
	}

	return models.NewComputedValue(margin, models.Float(*numVal / *revenue.Value), models.UnitPure,
		fmt.Sprintf("%s / revenue", numerator), components)
}

func hasSplitMarker(n models.Node) bool {
	if n == nil {
		return false
	}
	for _, w := range n.Header().Warnings {
		if strings.Contains(w, splitContaminationMarker) {
			return true
		}
	}
	return false
}
