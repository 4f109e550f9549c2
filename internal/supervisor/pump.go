package supervisor

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gamewarden/gamewarden/internal/logbuf"
	"github.com/gamewarden/gamewarden/internal/metrics"
)

// maxLineBytes bounds a single captured output line. Game servers are
// chatty but line-oriented; anything longer is split by the scanner.
const maxLineBytes = 1024 * 1024

// pump drains the server's merged stdout/stderr pipe line by line for
// the lifetime of one child run. Each line is timestamped, persisted via
// writeLine and pushed into the ring buffer. The pump owns the read end
// of the pipe and closes done when the stream ends, which the exit
// watcher uses to finalize state.
type pump struct {
	r         io.ReadCloser
	buf       *logbuf.Buffer
	writeLine func(ts time.Time, text string) error
	log       *slog.Logger
	done      chan struct{}
}

func newPump(r io.ReadCloser, buf *logbuf.Buffer, writeLine func(time.Time, string) error, log *slog.Logger) *pump {
	return &pump{r: r, buf: buf, writeLine: writeLine, log: log, done: make(chan struct{})}
}

func (p *pump) run() {
	defer close(p.done)
	defer func() { _ = p.r.Close() }()

	var writeFailed bool
	sc := bufio.NewScanner(p.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		ts := time.Now()
		p.buf.Append(logbuf.Line{Time: ts, Text: text})
		metrics.IncOutputLines(1)
		if err := p.writeLine(ts, text); err != nil {
			// The in-memory buffer stays authoritative; keep draining.
			if !writeFailed {
				p.log.Error("failed to write server log file", "error", err)
				writeFailed = true
			}
		} else {
			writeFailed = false
		}
	}
	if err := sc.Err(); err != nil {
		p.log.Warn("server output stream ended with error", "error", err)
	}
}
