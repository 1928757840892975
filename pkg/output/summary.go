package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/drengskapur/codepick/pkg/session"
	"github.com/drengskapur/codepick/pkg/tokenmap"
)

// SummaryOptions controls the end-of-run report.
type SummaryOptions struct {
	TokenMap bool
	Color    bool
	BarWidth int
}

// ColorEnabled reports whether f is a terminal that should get color.
func ColorEnabled(f *os.File) bool {
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func palette(c *color.Color, on bool) *color.Color {
	if on {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// PrintSummary reports totals, the optional token map, and warnings.
func PrintSummary(w io.Writer, set session.SelectionSet, doc *Document, opts SummaryOptions) {
	info := palette(color.New(color.FgCyan, color.Bold), opts.Color)
	green := palette(color.New(color.FgGreen), opts.Color)
	yellow := palette(color.New(color.FgYellow), opts.Color)
	dim := palette(color.New(color.Faint), opts.Color)

	files := len(set.Files)
	tokens := set.TotalTokens
	if doc != nil {
		files = len(doc.Files)
		tokens = doc.Tokens
	}

	info.Fprint(w, "[i] ")
	io.WriteString(w, "Files: ")
	green.Fprintln(w, tokenmap.FormatCount(files))
	info.Fprint(w, "[i] ")
	io.WriteString(w, "Total Prompt Token count: ")
	green.Fprintf(w, "%s (%s)\n", tokenmap.FormatCount(tokens), set.Tokenizer)

	if opts.TokenMap && len(set.TokenMap.Rows) > 0 {
		info.Fprint(w, "[i] ")
		io.WriteString(w, "File Token Map (Sum of file tokens: ")
		green.Fprint(w, tokenmap.FormatCount(set.TokenMap.Total))
		io.WriteString(w, "):\n")
		io.WriteString(w, tokenmap.Render(set.TokenMap, opts.BarWidth))
	}

	warnings := len(set.Warnings)
	if doc != nil {
		warnings += len(doc.Skipped)
	}
	if warnings == 0 {
		return
	}
	yellow.Fprintf(w, "[!] %d file(s) skipped\n", warnings)
	for _, wn := range set.Warnings {
		dim.Fprintf(w, "    %s\n", wn.String())
	}
	if doc != nil {
		for _, wn := range doc.Skipped {
			dim.Fprintf(w, "    %s\n", wn.String())
		}
	}
}
