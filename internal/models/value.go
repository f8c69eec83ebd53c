// Package models defines data structures for Handspread
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Units used across value variants.
const (
	UnitUSD      = "USD"
	UnitShares   = "shares"
	UnitPure     = "pure" // dimensionless ratios
	UnitMultiple = "x"    // valuation multiples
	UnitPercent  = "%"    // yields as decimal fractions (0.017 = 1.7%)
)

// ValueHeader carries the fields shared by every value variant.
// A nil Value is legal for all variants; warnings never alter the number.
type ValueHeader struct {
	Metric   string   `json:"metric"`
	Value    *float64 `json:"value"`
	Unit     string   `json:"unit"`
	Warnings []string `json:"warnings,omitempty"`
}

// Header returns the shared header, satisfying Node for every variant
// that embeds ValueHeader.
func (h *ValueHeader) Header() *ValueHeader { return h }

// AddWarning appends a warning unless it is already present.
func (h *ValueHeader) AddWarning(w string) {
	for _, existing := range h.Warnings {
		if existing == w {
			return
		}
	}
	h.Warnings = append(h.Warnings, w)
}

// Node is the common view over the three value variants. Consumers
// type-switch on the concrete type when provenance details matter.
type Node interface {
	Header() *ValueHeader
}

// MarketValue is a datapoint taken directly from the market vendor.
type MarketValue struct {
	ValueHeader
	Vendor    string          `json:"vendor"`
	Symbol    string          `json:"symbol"`
	Endpoint  string          `json:"endpoint"`
	FetchedAt time.Time       `json:"fetched_at"`
	Raw       json.RawMessage `json:"raw,omitempty"` // vendor payload, kept only when configured
}

// Citation renders a short provenance reference, e.g.
// "finnhub:quote AAPL @ 2025-01-15". Valid even when Value is nil.
func (m *MarketValue) Citation() string {
	return fmt.Sprintf("%s:%s %s @ %s", m.Vendor, m.Endpoint, m.Symbol, m.FetchedAt.UTC().Format("2006-01-02"))
}

// CitedValue is a datapoint resolved from an SEC XBRL filing.
type CitedValue struct {
	ValueHeader
	Concept      string `json:"concept"` // XBRL tag actually resolved, e.g. "Revenues"
	FiscalYear   int    `json:"fiscal_year,omitempty"`
	FiscalPeriod string `json:"fiscal_period,omitempty"`
	PeriodEnd    string `json:"period_end,omitempty"`
	FormType     string `json:"form_type,omitempty"`
	Filed        string `json:"filed,omitempty"`
	Accession    string `json:"accession,omitempty"`
	CIK          string `json:"cik,omitempty"`
	FilingURL    string `json:"filing_url,omitempty"`
}

// ComputedValue is derived from other values. Components map a role name
// (e.g. "numerator", "market_cap") to the value it was derived from; the
// graph is acyclic because components must exist before construction.
type ComputedValue struct {
	ValueHeader
	Formula    string          `json:"formula"` // human-readable, e.g. "enterprise_value / revenue"
	Components map[string]Node `json:"components,omitempty"`
}

// NewComputedValue builds a ComputedValue and merges warnings: component
// warnings first (components visited in sorted role order so output is
// deterministic), then local warnings, deduplicated in insertion order.
func NewComputedValue(metric string, value *float64, unit, formula string, components map[string]Node, warnings ...string) *ComputedValue {
	cv := &ComputedValue{
		ValueHeader: ValueHeader{
			Metric: metric,
			Value:  value,
			Unit:   unit,
		},
		Formula:    formula,
		Components: components,
	}

	seen := make(map[string]bool)
	merge := func(w string) {
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		cv.Warnings = append(cv.Warnings, w)
	}

	roles := make([]string, 0, len(components))
	for role := range components {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		if node := components[role]; node != nil {
			for _, w := range node.Header().Warnings {
				merge(w)
			}
		}
	}
	for _, w := range warnings {
		merge(w)
	}

	return cv
}

// Float returns a pointer to v. Convenience for building value headers.
func Float(v float64) *float64 { return &v }

// NodeValue extracts the numeric value from a node, nil-safe on both levels.
func NodeValue(n Node) *float64 {
	if n == nil {
		return nil
	}
	return n.Header().Value
}

// CurrencyOf extracts the currency code from a unit string. Per-share units
// like "JPY/shares" yield "JPY"; dimensionless units ("pure", "x", "%",
// "shares") and empty units yield "".
func CurrencyOf(unit string) string {
	base, _, _ := strings.Cut(unit, "/")
	switch base {
	case "", UnitShares, UnitPure, UnitMultiple, UnitPercent:
		return ""
	}
	return base
}

// PerShareUnit builds the unit string for a per-share amount in ccy,
// defaulting to USD when the currency is unknown.
func PerShareUnit(ccy string) string {
	if ccy == "" {
		ccy = UnitUSD
	}
	return ccy + "/shares"
}
