// Package retention prunes artifacts on the backup store whose embedded
// date falls outside the retention window.
package retention

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"tenant-backup/src/store"
)

// Config wires a Manager.
type Config struct {
	Store  store.Store
	Clock  clock.Clock
	Out    io.Writer
	Logger *slog.Logger
}

// Manager applies a calendar-day retention policy to a store.
type Manager struct {
	store  store.Store
	clock  clock.Clock
	out    io.Writer
	logger *slog.Logger
}

func New(cfg Config) *Manager {
	m := &Manager{store: cfg.Store, clock: cfg.Clock, out: cfg.Out, logger: cfg.Logger}
	if m.clock == nil {
		m.clock = clock.WallClock
	}
	if m.out == nil {
		m.out = io.Discard
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "retention")
	return m
}

// Plan is the outcome of comparing the store against the policy.
type Plan struct {
	Cutoff  time.Time        `json:"cutoff"`
	Expired []store.Artifact `json:"expired"`
	Kept    []store.Artifact `json:"kept"`
	// Skipped holds names that do not follow the artifact naming scheme.
	Skipped []string `json:"skipped,omitempty"`
}

// Result reports what a prune pass did.
type Result struct {
	Plan
	Removed []string         `json:"removed"`
	Failed  map[string]error `json:"-"`
}

// Cutoff returns the last calendar day that is expired for keepDays:
// artifacts dated on or before it are removed.
func Cutoff(now time.Time, keepDays int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -keepDays)
}

// Plan lists the store once and classifies every artifact.
func (m *Manager) Plan(ctx context.Context, keepDays int) (Plan, error) {
	if keepDays < 0 {
		return Plan{}, errors.NotValidf("negative retention of %d days", keepDays)
	}
	now := m.clock.Now()
	p := Plan{Cutoff: Cutoff(now, keepDays)}

	names, err := m.store.List(ctx)
	if err != nil {
		return p, errors.Annotatef(err, "list artifacts on %s", m.store)
	}
	for _, name := range names {
		a, err := store.ParseArtifact(name, now.Location())
		if err != nil {
			m.logger.Debug("skipping unrecognised file", "name", name)
			p.Skipped = append(p.Skipped, name)
			continue
		}
		if a.Date.After(p.Cutoff) {
			p.Kept = append(p.Kept, a)
		} else {
			p.Expired = append(p.Expired, a)
		}
	}
	return p, nil
}

// Prune removes every expired artifact. Removals are independent: a failed
// removal is logged and recorded and the pass continues.
func (m *Manager) Prune(ctx context.Context, keepDays int) (Result, error) {
	fmt.Fprintf(m.out, "Removing snapshots older than %d days from %s\n", keepDays, m.store)
	p, err := m.Plan(ctx, keepDays)
	if err != nil {
		return Result{Plan: p}, err
	}
	res := Result{Plan: p, Failed: map[string]error{}}
	for _, a := range p.Expired {
		fmt.Fprintf(m.out, "Removing %s...\n", a.Name)
		if err := m.store.Remove(ctx, a.Name); err != nil {
			m.logger.Error("remove artifact failed", "name", a.Name, "error", err)
			res.Failed[a.Name] = err
			continue
		}
		m.logger.Info("artifact removed", "name", a.Name, "date", a.Date.Format(time.DateOnly))
		res.Removed = append(res.Removed, a.Name)
	}
	if len(p.Skipped) > 0 {
		m.logger.Warn("files not matching the artifact naming scheme were left in place", "count", len(p.Skipped))
	}
	return res, nil
}
