package models

// EVBridge is the assembled enterprise-value walk for one company. Component
// fields reference the cited values the policy actually applied; a nil field
// means the policy skipped that item or the filing did not report it.
type EVBridge struct {
	EnterpriseValue *ComputedValue `json:"enterprise_value"`
	EquityValue     *ComputedValue `json:"equity_value,omitempty"`
	NetDebt         *ComputedValue `json:"net_debt,omitempty"`

	MarketCap                 Node        `json:"market_cap,omitempty"`
	TotalDebt                 *CitedValue `json:"total_debt,omitempty"`
	ShortTermDebt             *CitedValue `json:"short_term_debt,omitempty"`
	CashAndEquivalents        *CitedValue `json:"cash_and_equivalents,omitempty"`
	MarketableSecurities      *CitedValue `json:"marketable_securities,omitempty"`
	OperatingLeaseLiabilities *CitedValue `json:"operating_lease_liabilities,omitempty"`
	PreferredStock            *CitedValue `json:"preferred_stock,omitempty"`
	NoncontrollingInterests   *CitedValue `json:"noncontrolling_interests,omitempty"`
	EquityMethodInvestments   *CitedValue `json:"equity_method_investments,omitempty"`
}

// SECResult is what the XBRL extraction library returns for one symbol and
// period: entity metadata plus cited values keyed by normalized metric name
// (revenue, total_debt, eps_diluted, ...).
type SECResult struct {
	EntityName    string                 `json:"entity_name,omitempty"`
	CIK           string                 `json:"cik,omitempty"`
	FiscalYearEnd string                 `json:"fiscal_year_end,omitempty"`
	Metrics       map[string]*CitedValue `json:"metrics"`
}

// CompanyAnalysis is the per-ticker output of an analysis run. It is
// assembled once after all streams settle and not mutated afterwards.
// Cited values are shared by reference across sections: the same *CitedValue
// may back a multiple, a growth figure, and an operating ratio.
type CompanyAnalysis struct {
	Symbol        string `json:"symbol"`
	CompanyName   string `json:"company_name,omitempty"`
	CIK           string `json:"cik,omitempty"`
	FiscalYearEnd string `json:"fiscal_year_end,omitempty"`

	Market       *MarketSnapshot        `json:"market,omitempty"`
	SECLTM       map[string]*CitedValue `json:"sec_ltm,omitempty"`
	SECLTMMinus1 map[string]*CitedValue `json:"sec_ltm_minus_1,omitempty"`

	EVBridge  *EVBridge                 `json:"ev_bridge,omitempty"`
	Multiples map[string]*ComputedValue `json:"multiples"`
	Growth    map[string]*ComputedValue `json:"growth"`
	Operating map[string]*ComputedValue `json:"operating"`

	Errors   []AnalysisError `json:"errors,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}
