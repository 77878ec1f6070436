package provision

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/artpar/devstack/internal/core/pipeline"
)

// =============================================================================
// Step Reporter
// =============================================================================

// ColorReporter renders pipeline events as an indented, colored step list.
type ColorReporter struct {
	out     io.Writer
	verbose bool

	started   *color.Color
	completed *color.Color
	skipped   *color.Color
	failed    *color.Color
	muted     *color.Color
}

var _ pipeline.Reporter = (*ColorReporter)(nil)

// NewColorReporter creates a reporter writing to out. Step output lines are
// shown only when verbose is set.
func NewColorReporter(out io.Writer, verbose bool) *ColorReporter {
	return &ColorReporter{
		out:       out,
		verbose:   verbose,
		started:   color.New(color.FgCyan),
		completed: color.New(color.FgGreen),
		skipped:   color.New(color.FgYellow),
		failed:    color.New(color.FgRed, color.Bold),
		muted:     color.New(color.FgHiBlack),
	}
}

// WithoutColor disables color codes, e.g. when out is not a terminal.
func (r *ColorReporter) WithoutColor() *ColorReporter {
	for _, c := range []*color.Color{r.started, r.completed, r.skipped, r.failed, r.muted} {
		c.DisableColor()
	}
	return r
}

// OnEvent writes one line per event.
func (r *ColorReporter) OnEvent(e pipeline.Event) {
	indent := strings.Repeat("  ", e.Depth)
	switch e.Kind {
	case pipeline.EventStarted:
		fmt.Fprintf(r.out, "%s%s %s\n", indent, r.started.Sprint("❯"), e.Title)
	case pipeline.EventTitle:
		fmt.Fprintf(r.out, "%s%s %s\n", indent, r.started.Sprint("❯"), e.Message)
	case pipeline.EventOutput:
		if r.verbose {
			fmt.Fprintf(r.out, "%s  %s\n", indent, r.muted.Sprint("› "+e.Message))
		}
	case pipeline.EventCompleted:
		fmt.Fprintf(r.out, "%s%s %s %s\n", indent, r.completed.Sprint("✔"), e.Title, r.muted.Sprint(formatDuration(e.Duration)))
	case pipeline.EventSkipped:
		fmt.Fprintf(r.out, "%s%s %s %s\n", indent, r.skipped.Sprint("↓"), e.Title, r.muted.Sprintf("[%s]", e.Message))
	case pipeline.EventFailed:
		fmt.Fprintf(r.out, "%s%s %s: %v\n", indent, r.failed.Sprint("✖"), e.Title, e.Err)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("(%dms)", d.Milliseconds())
	}
	return fmt.Sprintf("(%.1fs)", d.Seconds())
}
