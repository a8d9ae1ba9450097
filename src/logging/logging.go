// Package logging builds the run logger: terse text on the console and JSON
// records in a rotating log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/lumberjack/v2"
)

// Options configures New.
type Options struct {
	// Console receives human-readable records. Nil disables console logging.
	Console io.Writer
	Level   slog.Leveler
	// File is the JSON log path. Empty disables the file sink.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
)

// New returns a logger fanning out to the configured sinks. The returned
// closer releases the log file and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level := opts.Level
	if level == nil {
		level = slog.LevelInfo
	}
	var handlers []slog.Handler
	if opts.Console != nil {
		handlers = append(handlers, NewCLIHandler(opts.Console, level))
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		if lj.MaxSize <= 0 {
			lj.MaxSize = defaultMaxSizeMB
		}
		if lj.MaxBackups <= 0 {
			lj.MaxBackups = defaultMaxBackups
		}
		// The file always records info and above so a quiet console
		// still leaves an audit trail.
		fileLevel := level
		if level.Level() > slog.LevelInfo {
			fileLevel = slog.LevelInfo
		}
		handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{Level: fileLevel}))
		closer = lj
	}
	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), closer, nil
	case 1:
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(fanout(handlers)), closer, nil
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.NotValidf("log level %q", s)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout passes each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// NewCLIHandler renders records as "15:04:05 LEVEL message key=value ...".
func NewCLIHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return &cliHandler{w: w, level: level, mu: &sync.Mutex{}}
}

type cliHandler struct {
	w      io.Writer
	level  slog.Leveler
	mu     *sync.Mutex
	prefix string
	attrs  []slog.Attr
}

func (h *cliHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *cliHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format(time.TimeOnly))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s ", r.Level.String())
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *cliHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		c.attrs = append(c.attrs, a)
	}
	return &c
}

func (h *cliHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.prefix = h.prefix + name + "."
	return &c
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, nested := range v.Group() {
			writeAttr(b, prefix+a.Key+".", nested)
		}
		return
	}
	if a.Equal(slog.Attr{}) {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix + a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(v))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok && err != nil {
			return strconv.Quote(err.Error())
		}
	}
	return v.String()
}
