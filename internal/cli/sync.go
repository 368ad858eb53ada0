package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type syncCmd struct{}

func (*syncCmd) Name() string     { return "sync" }
func (*syncCmd) Synopsis() string { return "value the portfolio and write prices back to Notion" }
func (*syncCmd) Usage() string {
	return `portfolio sync

  Runs a valuation pass, then writes "Current Price" and "Market Value" to
  each holding's Notion page, creating pages for tickers that have none.
  Rows whose price lookup failed are left untouched.
`
}

func (*syncCmd) SetFlags(*flag.FlagSet) {}

func (*syncCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	res, err := a.svc.RefreshAndSync(ctx)
	if res == nil {
		return fail("sync failed: %v", err)
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("snapshot not stored")
	}

	snap := res.Snapshot
	if snap.NoData {
		return fail("no holdings to sync (%s)", orReason(snap.SourceError))
	}

	fmt.Fprintf(os.Stdout, "Total Market Value (USD): %s\n", snap.DisplayTotal().StringFixed(2))
	if s := res.Sync; s != nil {
		fmt.Fprintf(os.Stdout, "Updated: %d  Created pages: %d  Skipped: %d  Failed: %d\n",
			s.Updated, s.Created, len(s.Skipped), len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(os.Stdout, "  %s: %v\n", f.Ticker, f.Err)
		}
		if len(s.Failed) > 0 {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

func orReason(s string) string {
	if s == "" {
		return "source returned no rows"
	}
	return s
}
