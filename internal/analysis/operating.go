package analysis

import (
	"fmt"

	"github.com/bobmcallan/handspread/internal/models"
)

// operatingMarginSpecs pair each margin key with its numerator metric.
var operatingMarginSpecs = []struct {
	margin    string
	numerator string
}{
	{"gross_margin", "gross_profit"},
	{"ebitda_margin", "ebitda"},
	{"adjusted_ebitda_margin", "adjusted_ebitda"},
	{"net_margin", "net_income"},
	{"fcf_margin", "free_cash_flow"},
}

// expenseRatioSpecs pair each expense ratio key with its numerator metric.
var expenseRatioSpecs = []struct {
	name      string
	numerator string
}{
	{"rd_to_revenue", "rd_expense"},
	{"sga_to_revenue", "sga_expense"},
	{"capex_to_revenue", "capex"},
}

// ComputeOperating derives margins, expense ratios, revenue per share, and
// ROIC. These are SEC-only in arithmetic, so a non-USD filer still gets them;
// only the share-count mix in revenue_per_share earns a cross-context warning.
func ComputeOperating(sec map[string]*models.CitedValue, market *models.MarketSnapshot, taxRate float64) map[string]*models.ComputedValue {
	result := make(map[string]*models.ComputedValue)

	for _, spec := range operatingMarginSpecs {
		if cv := periodMargin(spec.margin, spec.numerator, sec); cv != nil {
			result[spec.margin] = cv
		}
	}

	revenue := ExtractSECValue(sec, "revenue")
	for _, spec := range expenseRatioSpecs {
		if cv := expenseRatio(spec.name, spec.numerator, sec, revenue); cv != nil {
			result[spec.name] = cv
		}
	}

	if cv := revenuePerShare(revenue, market); cv != nil {
		result["revenue_per_share"] = cv
	}

	if cv := computeROIC(sec, taxRate); cv != nil {
		result["roic"] = cv
	}

	return result
}

// expenseRatio is numerator/revenue for an expense line item. Nil when the
// numerator is missing or revenue is missing or zero.
func expenseRatio(name, numerator string, sec map[string]*models.CitedValue, revenue *models.CitedValue) *models.ComputedValue {
	num := ExtractSECValue(sec, numerator)
	if num == nil || num.Value == nil || revenue == nil || revenue.Value == nil || *revenue.Value == 0 {
		return nil
	}

	components := map[string]models.Node{
		"numerator": num,
		"revenue":   revenue,
	}

	return models.NewComputedValue(name, models.Float(*num.Value / *revenue.Value), models.UnitPure,
		fmt.Sprintf("%s / revenue", numerator), components)
}

// revenuePerShare divides cited revenue by the market share count. The unit
// follows the cited currency; mixing a non-USD filer with USD-context shares
// still computes but carries the cross-context warning.
func revenuePerShare(revenue *models.CitedValue, market *models.MarketSnapshot) *models.ComputedValue {
	if revenue == nil || revenue.Value == nil || market == nil || market.SharesOutstanding == nil {
		return nil
	}
	shares := market.SharesOutstanding
	if shares.Value == nil || *shares.Value <= 0 {
		return nil
	}

	ccy := models.CurrencyOf(revenue.Unit)
	var warnings []string
	if IsCrossCurrency(revenue) {
		warnings = append(warnings, fmt.Sprintf("cross-context: SEC %s revenue vs market share count", ccy))
	}

	components := map[string]models.Node{
		"revenue":            revenue,
		"shares_outstanding": shares,
	}

	return models.NewComputedValue("revenue_per_share", models.Float(*revenue.Value / *shares.Value),
		models.PerShareUnit(ccy), "revenue / shares_outstanding", components, warnings...)
}

// computeROIC approximates return on invested capital as NOPAT over
// debt plus equity. Operating income and equity are required; missing debt is
// treated as zero. Zero invested capital emits a nil value; negative invested
// capital is omitted since the sign would be meaningless.
func computeROIC(sec map[string]*models.CitedValue, taxRate float64) *models.ComputedValue {
	oi := ExtractSECValue(sec, "operating_income")
	debt := ExtractSECValue(sec, "total_debt")
	equity := ExtractSECValue(sec, "stockholders_equity")

	if oi == nil || oi.Value == nil || equity == nil || equity.Value == nil {
		return nil
	}

	formula := fmt.Sprintf("operating_income * (1 - %.2f) / (total_debt + stockholders_equity)", taxRate)
	components := map[string]models.Node{
		"operating_income":    oi,
		"stockholders_equity": equity,
	}

	warnings := []string{fmt.Sprintf("assumes %.1f%% tax rate", taxRate*100)}

	debtVal := 0.0
	if debt != nil && debt.Value != nil {
		components["total_debt"] = debt
		debtVal = *debt.Value
	} else {
		warnings = append(warnings, "total_debt missing, treated as 0")
	}

	invested := debtVal + *equity.Value
	if invested < 0 {
		return nil
	}
	if invested == 0 {
		warnings = append(warnings, "invested capital is zero")
		return models.NewComputedValue("roic", nil, models.UnitPure, formula, components, warnings...)
	}

	nopat := *oi.Value * (1 - taxRate)
	return models.NewComputedValue("roic", models.Float(nopat/invested), models.UnitPure, formula, components, warnings...)
}
