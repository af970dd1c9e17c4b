package report

import (
	"fmt"
	"io"

	"github.com/Sumatoshi-tech/mipforge/pkg/mipchain"
)

// progressStep is the percentage between two tile progress lines.
const progressStep = 10

// Progress prints build progress as "progress:" status lines. A silent
// Progress prints nothing.
type Progress struct {
	w      io.Writer
	silent bool
	levels int
	ready  int
	next   int
}

// NewProgress returns a Progress writing to w.
func NewProgress(w io.Writer, silent bool) *Progress {
	return &Progress{w: w, silent: silent}
}

func (p *Progress) progressf(format string, args ...any) {
	if p.silent {
		return
	}

	_, _ = fmt.Fprintf(p.w, "progress: "+format+"\n", args...)
}

// Start records the number of levels in the chain.
func (p *Progress) Start(levels int) {
	p.levels = levels
	p.ready = 0
	p.next = 0

	p.progressf("building %d levels", levels)
}

// Tile reports tiles done in the level being resized. Lines are throttled to
// every progressStep percent plus the last tile.
func (p *Progress) Tile(done, total int) {
	if total <= 0 {
		return
	}

	pct := done * 100 / total
	if done != total && pct < p.next {
		return
	}

	p.next = pct/progressStep*progressStep + progressStep

	p.progressf("level %d tiles %d/%d (%d%%)", p.ready, done, total, pct)
}

// Level prints the status line of a finished level and the overall count.
func (p *Progress) Level(l mipchain.Level) {
	p.ready++
	p.next = 0

	if p.silent {
		return
	}

	Level(p.w, l)
	p.progressf("%d/%d levels ready", p.ready, p.levels)
}
