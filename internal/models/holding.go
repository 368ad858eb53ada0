package models

import "github.com/shopspring/decimal"

// HoldingRecord is one (account, ticker, units) row read from a holdings
// source. Ref is the source's own row identifier when it has one.
type HoldingRecord struct {
	Account string          `json:"account"`
	Ticker  string          `json:"ticker"`
	Units   decimal.Decimal `json:"units"`
	Ref     string          `json:"ref,omitempty"`
}

// PricedHolding is a holding with its resolved price. Price and Value are
// unrounded; use the Display helpers for presentation.
type PricedHolding struct {
	HoldingRecord
	Route  Route           `json:"route"`
	Price  decimal.Decimal `json:"price"`
	Value  decimal.Decimal `json:"value"`
	Source string          `json:"source,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (p PricedHolding) Failed() bool {
	return p.Error != ""
}

func (p PricedHolding) DisplayPrice() decimal.Decimal {
	return p.Price.Round(2)
}

func (p PricedHolding) DisplayValue() decimal.Decimal {
	return p.Value.Round(2)
}
