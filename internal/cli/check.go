package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/subcommands"

	"github.com/kjannette/trahn-portfolio/internal/external"
	"github.com/kjannette/trahn-portfolio/internal/holdings"
	"github.com/kjannette/trahn-portfolio/internal/logging"
)

// Notion API clients satisfy this.
type databaseProbe interface {
	RetrieveDatabase(ctx context.Context, databaseID string) (*external.NotionDatabase, error)
	QueryDatabase(ctx context.Context, databaseID string, q external.NotionQuery) (*external.NotionQueryResult, error)
}

type checkCmd struct {
	rows int
}

func (*checkCmd) Name() string     { return "check" }
func (*checkCmd) Synopsis() string { return "verify access to the Notion holdings database" }
func (*checkCmd) Usage() string {
	return `portfolio check [-rows 3]

  Retrieves the configured Notion database, lists its properties and
  previews the first rows. Useful when a sync finds no holdings.
`
}

func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.rows, "rows", 3, "Number of rows to preview")
}

func (c *checkCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, log, err := loadConfig(os.Stderr)
	if err != nil {
		return fail("%v", err)
	}
	if !cfg.NotionConfigured() {
		return fail("NOTION_TOKEN and NOTION_DATABASE_ID must be set")
	}

	client := external.NewNotionClient(cfg.NotionToken,
		external.WithNotionURL(cfg.NotionBaseURL),
		external.WithNotionVersion(cfg.NotionVersion),
		external.WithNotionLogger(logging.Component(log, "notion")),
	)
	if err := probe(ctx, os.Stdout, client, cfg.NotionDatabaseID, c.rows); err != nil {
		return fail("check failed: %v", err)
	}
	return subcommands.ExitSuccess
}

func probe(ctx context.Context, w io.Writer, client databaseProbe, databaseID string, rows int) error {
	info, err := client.RetrieveDatabase(ctx, databaseID)
	if err != nil {
		return fmt.Errorf("retrieve database: %w", err)
	}

	var title strings.Builder
	for _, t := range info.Title {
		title.WriteString(t.PlainText)
	}
	fmt.Fprintf(w, "Database: %s (%s)\n", title.String(), info.ID)

	names := make([]string, 0, len(info.Properties))
	for name := range info.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "Properties:")
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, info.Properties[name].Type)
	}
	for _, want := range []string{holdings.PropAccount, holdings.PropTicker, holdings.PropUnits} {
		if _, ok := info.Properties[want]; !ok {
			fmt.Fprintf(w, "  missing expected property %q\n", want)
		}
	}

	if rows <= 0 {
		return nil
	}
	res, err := client.QueryDatabase(ctx, databaseID, external.NotionQuery{PageSize: rows})
	if err != nil {
		return fmt.Errorf("query database: %w", err)
	}
	fmt.Fprintf(w, "First %d rows (more: %t):\n", len(res.Results), res.HasMore)
	for _, page := range res.Results {
		units := "-"
		if d, err := page.Properties[holdings.PropUnits].Decimal(); err == nil {
			units = d.String()
		}
		fmt.Fprintf(w, "  %s  %-12s %-10s %s\n",
			page.ID,
			page.Properties[holdings.PropTicker].PlainText(),
			page.Properties[holdings.PropAccount].SelectName(),
			units,
		)
	}
	return nil
}
