package report

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/mipforge/pkg/mipchain"
	"github.com/Sumatoshi-tech/mipforge/pkg/tiling"
)

func newTable(w io.Writer) table.Writer {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	return tbl
}

// WriteLevels prints one row per chain level.
func WriteLevels(w io.Writer, levels []mipchain.Level) {
	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"Level", "Size", "Method", "Source"})

	for _, l := range levels {
		tbl.AppendRow(table.Row{l.Index, l.Size.String(), string(l.Method), filepath.Base(l.Source)})
	}

	tbl.AppendFooter(table.Row{"", "", "Total", fmt.Sprintf("%d levels", len(levels))})
	tbl.Render()
}

// WritePlan prints a tile plan with the memory estimate it was computed from.
func WritePlan(w io.Writer, plan tiling.Plan, available uint64) {
	fmt.Fprintf(w, "image %dx%d, available memory %s, chunk %dpx, %d tiles (%d rows x %d cols)\n",
		plan.Width, plan.Height, humanize.IBytes(available), plan.ChunkSize, len(plan.Tiles), plan.Rows(), plan.Cols())

	tbl := newTable(w)
	tbl.AppendHeader(table.Row{"#", "X", "Y", "Width", "Height"})

	for i, t := range plan.Tiles {
		tbl.AppendRow(table.Row{i, t.Min.X, t.Min.Y, t.Dx(), t.Dy()})
	}

	tbl.Render()
}

// Level prints a one-line status for a finished level.
func Level(w io.Writer, l mipchain.Level) {
	mark := color.New(color.FgGreen).Sprint("✓")
	if l.Method == mipchain.MethodFallback {
		mark = color.New(color.FgYellow).Sprint("!")
	}

	fmt.Fprintf(w, "%s level %d %s (%s)\n", mark, l.Index, l.Size, l.Method)
}

// Done prints the final success line.
func Done(w io.Writer, outputDir string) {
	color.New(color.FgGreen, color.Bold).Fprintf(w, "done, output directory: %s\n", outputDir)
}
