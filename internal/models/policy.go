package models

import "fmt"

// Debt modes for the enterprise-value bridge.
const (
	DebtModeTotalOnly          = "total_only"            // use total_debt, ignore short_term_debt
	DebtModeSplit              = "split"                 // sum total_debt + short_term_debt, warn on overlap
	DebtModeTotalPlusShortTerm = "total_plus_short_term" // sum both without the overlap warning
)

// EVPolicy controls which balance-sheet items feed the EV bridge and with
// what sign. The bridge is a pure function of (inputs, policy).
type EVPolicy struct {
	DebtMode                        string `json:"debt_mode" toml:"debt_mode"`
	SubtractCash                    bool   `json:"subtract_cash" toml:"subtract_cash"`
	SubtractMarketableSecurities    bool   `json:"subtract_marketable_securities" toml:"subtract_marketable_securities"`
	IncludeLeases                   bool   `json:"include_leases" toml:"include_leases"`
	IncludePreferred                bool   `json:"include_preferred" toml:"include_preferred"`
	IncludeNCI                      bool   `json:"include_nci" toml:"include_nci"`
	SubtractEquityMethodInvestments bool   `json:"subtract_equity_method_investments" toml:"subtract_equity_method_investments"`
}

// DefaultEVPolicy returns the standard bridge: total debt plus preferred and
// NCI, net of cash and marketable securities, leases and equity-method
// investments untouched.
func DefaultEVPolicy() EVPolicy {
	return EVPolicy{
		DebtMode:                     DebtModeTotalOnly,
		SubtractCash:                 true,
		SubtractMarketableSecurities: true,
		IncludePreferred:             true,
		IncludeNCI:                   true,
	}
}

// Validate checks the policy for values the bridge cannot interpret.
func (p EVPolicy) Validate() error {
	switch p.DebtMode {
	case DebtModeTotalOnly, DebtModeSplit, DebtModeTotalPlusShortTerm:
		return nil
	default:
		return fmt.Errorf("unknown debt_mode %q", p.DebtMode)
	}
}
