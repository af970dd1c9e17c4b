// Package report renders human-facing run output: level and plan tables,
// status lines, and the diagnostic block printed on a fatal error.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/mipforge/pkg/resource"
)

// Diagnostics is the environment snapshot attached to a fatal error.
type Diagnostics struct {
	Time              time.Time
	Platform          string
	GoVersion         string
	MemoryUsedPercent float64
	AvailableMemory   uint64
	FreeDisk          uint64
	WorkDir           string
	InputDir          string
	InputFiles        int
}

// Collect gathers diagnostics. Counters that cannot be read are left zero.
func Collect(monitor *resource.Monitor, inputDir string) Diagnostics {
	d := Diagnostics{
		Time:      time.Now(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
		InputDir:  inputDir,
	}

	if monitor != nil {
		snap := monitor.Snapshot()
		d.MemoryUsedPercent = snap.UsedPercent
		d.AvailableMemory = snap.AvailableMemory
		d.FreeDisk = snap.FreeDisk
	}

	if wd, err := os.Getwd(); err == nil {
		d.WorkDir = wd
	}

	if entries, err := os.ReadDir(inputDir); err == nil {
		d.InputFiles = len(entries)
	}

	return d
}

// WriteFatal prints the error, its cause chain and the diagnostics.
func WriteFatal(w io.Writer, err error, d Diagnostics) {
	color.New(color.FgRed, color.Bold).Fprintf(w, "fatal: %v\n", err)

	chain := causes(err)
	if len(chain) > 1 {
		fmt.Fprintln(w, "caused by:")

		for _, c := range chain[1:] {
			fmt.Fprintf(w, "  - %s\n", c)
		}
	}

	color.New(color.FgYellow).Fprintln(w, "diagnostics:")

	rows := [][2]string{
		{"time", d.Time.Format(time.RFC1123)},
		{"platform", d.Platform},
		{"go", d.GoVersion},
		{"memory used", fmt.Sprintf("%.1f%%", d.MemoryUsedPercent)},
		{"memory available", humanize.IBytes(d.AvailableMemory)},
		{"disk free", humanize.IBytes(d.FreeDisk)},
		{"working dir", d.WorkDir},
		{"input files", fmt.Sprintf("%d (%s)", d.InputFiles, d.InputDir)},
	}

	for _, r := range rows {
		fmt.Fprintf(w, "  %-17s %s\n", r[0]+":", r[1])
	}
}

// causes flattens the wrap tree of err depth first, dropping duplicate messages.
func causes(err error) []string {
	var out []string

	seen := make(map[string]bool)

	var walk func(e error)

	walk = func(e error) {
		if e == nil {
			return
		}

		msg := e.Error()
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}

		multi, ok := e.(interface{ Unwrap() []error }) //nolint:errorlint // walking the wrap tree itself.
		if ok {
			for _, inner := range multi.Unwrap() {
				walk(inner)
			}

			return
		}

		walk(errors.Unwrap(e))
	}

	walk(err)

	return out
}
