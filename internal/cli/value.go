package cli

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/kjannette/trahn-portfolio/internal/report"
)

type valueCmd struct {
	style string
	width int
}

func (*valueCmd) Name() string     { return "value" }
func (*valueCmd) Synopsis() string { return "price every holding and print the valuation table" }
func (*valueCmd) Usage() string {
	return `portfolio value [-style auto|dark|light|notty|plain] [-width N]

  Loads the holdings, resolves one USD price per row and prints the table
  sorted by market value, with the total and any failed lookups.
`
}

func (c *valueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.style, "style", "", "Render style (defaults to RENDER_STYLE)")
	f.IntVar(&c.width, "width", 0, "Word wrap width (defaults to RENDER_WIDTH)")
}

func (c *valueCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	res, err := a.svc.Refresh(ctx)
	if res == nil {
		return fail("valuation failed: %v", err)
	}
	if err != nil {
		a.log.Warn().Err(err).Msg("snapshot not stored")
	}

	style, width := a.cfg.RenderStyle, a.cfg.RenderWidth
	if c.style != "" {
		style = c.style
	}
	if c.width > 0 {
		width = c.width
	}
	if err := report.Render(os.Stdout, res.Snapshot, style, width); err != nil {
		return fail("render: %v", err)
	}

	if res.Snapshot.NoData {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
