// Package report formats a portfolio snapshot as a markdown table for the
// terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"github.com/kjannette/trahn-portfolio/internal/models"
)

const (
	StylePlain = "plain"
	StyleAuto  = "auto"
)

// USD formats an amount as dollars and cents, e.g. $1,234.50.
func USD(amount decimal.Decimal) string {
	cents := amount.Round(2).Shift(2).IntPart()
	return money.New(cents, money.USD).Display()
}

// Markdown renders the snapshot sorted by value, largest first, followed by
// the total, lookup warnings and a last-updated caption.
func Markdown(s *models.PortfolioSnapshot) string {
	var b strings.Builder

	b.WriteString("# Portfolio\n\n")
	if s.NoData {
		fmt.Fprintf(&b, "No holdings found (source: %s).\n", orDash(s.Source))
		if s.SourceError != "" {
			fmt.Fprintf(&b, "\n> %s\n", s.SourceError)
		}
		fmt.Fprintf(&b, "\n_Last updated: %s_\n", s.TakenAt.Format("2006-01-02 15:04:05 MST"))
		return b.String()
	}

	fmt.Fprintf(&b, "**Total Market Value (USD): %s**\n\n", USD(s.DisplayTotal()))
	b.WriteString("| Account | Ticker | Units | Price | Value |\n")
	b.WriteString("|---|---|--:|--:|--:|\n")
	for _, h := range s.SortedByValue() {
		price := USD(h.DisplayPrice())
		if h.Failed() {
			price += " ⚠"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			cell(h.Account), cell(h.Ticker), h.Units.StringFixed(3), price, USD(h.DisplayValue()))
	}

	if s.AllUnavailable() {
		b.WriteString("\n> All prices are unavailable; the total is not meaningful.\n")
	}
	if failed := s.FailedTickers(); len(failed) > 0 {
		fmt.Fprintf(&b, "\n> Price lookup failed for: %s\n", strings.Join(failed, ", "))
	}

	fmt.Fprintf(&b, "\n_Last updated: %s_\n", s.TakenAt.Format("2006-01-02 15:04:05 MST"))
	return b.String()
}

// Render writes the report to w, through glamour unless style is plain.
func Render(w io.Writer, s *models.PortfolioSnapshot, style string, width int) error {
	md := Markdown(s)
	if style == StylePlain {
		_, err := io.WriteString(w, md)
		return err
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" || style == StyleAuto {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
