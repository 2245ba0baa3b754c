package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// Reporter prints batch-by-batch export progress: cumulative count, percent
// of target, throughput, and a naive ETA. On a terminal it redraws one line;
// piped output gets a plain line per update.
type Reporter struct {
	out    io.Writer
	start  time.Time
	target int
	tty    bool
}

// NewReporter builds a reporter for stderr. The engine sets the target once
// the matching count is known.
func NewReporter() *Reporter {
	return &Reporter{
		out:   os.Stderr,
		start: time.Now(),
		tty:   isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// SetTarget fixes the record target and restarts the throughput clock.
func (r *Reporter) SetTarget(target int) {
	r.target = target
	r.start = time.Now()
}

// Update reports progress after a batch.
func (r *Reporter) Update(exported int) {
	line := r.line(exported)
	if r.tty {
		fmt.Fprintf(r.out, "\r\033[K%s", line)
	} else {
		fmt.Fprintln(r.out, line)
	}
}

// Done prints the final summary and terminates the redraw line.
func (r *Reporter) Done(exported int) {
	elapsed := time.Since(r.start)
	if r.tty {
		fmt.Fprint(r.out, "\r\033[K")
	}
	fmt.Fprintf(r.out, "Exported %s records in %s (%.1f records/sec)\n",
		humanize.Comma(int64(exported)), elapsed.Round(time.Millisecond), rate(exported, elapsed))
}

func (r *Reporter) line(exported int) string {
	elapsed := time.Since(r.start)
	throughput := rate(exported, elapsed)

	percent := 0.0
	if r.target > 0 {
		percent = float64(exported) / float64(r.target) * 100
	}

	eta := "?"
	if throughput > 0 && r.target > exported {
		remaining := float64(r.target-exported) / throughput
		eta = (time.Duration(remaining) * time.Second).String()
	}

	return fmt.Sprintf("Exported %s/%s (%.1f%%) | %.1f records/sec | ETA %s",
		humanize.Comma(int64(exported)), humanize.Comma(int64(r.target)), percent, throughput, eta)
}

func rate(exported int, elapsed time.Duration) float64 {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(exported) / secs
}
