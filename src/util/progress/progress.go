package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reader wraps an io.Reader, counts the bytes read and periodically writes
// a single-line progress update to out.
type Reader struct {
	r     io.Reader
	out   io.Writer
	label string
	total int64
	every time.Duration
	now   func() time.Time

	mu          sync.Mutex
	read        int64
	lastPrinted time.Time
	finished    bool
}

// NewReader creates a new progress Reader. If total is 0, percentage is
// omitted. A nil out disables output but still counts bytes.
func NewReader(r io.Reader, total int64, label string, out io.Writer) *Reader {
	return &Reader{r: r, out: out, label: label, total: total, every: 500 * time.Millisecond, now: time.Now}
}

func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 {
		p.read += int64(n)
		if now := p.now(); now.Sub(p.lastPrinted) >= p.every {
			p.print()
			p.lastPrinted = now
		}
	}
	if err == io.EOF && !p.finished {
		p.finished = true
		p.print()
		if p.out != nil {
			fmt.Fprint(p.out, "\n")
		}
	}
	return n, err
}

// N returns the number of bytes read so far.
func (p *Reader) N() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.read
}

func (p *Reader) print() {
	if p.out == nil {
		return
	}
	if p.total > 0 {
		pct := float64(p.read) / float64(p.total) * 100
		fmt.Fprintf(p.out, "\r[%s] %.1f%% (%s/%s)", p.label, pct, humanize.Bytes(uint64(p.read)), humanize.Bytes(uint64(p.total)))
	} else {
		fmt.Fprintf(p.out, "\r[%s] %s", p.label, humanize.Bytes(uint64(p.read)))
	}
}
