// Package lifecycle drives a single instance snapshot from request to a
// terminal state under a wall-clock budget.
package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"tenant-backup/src/model"
	"tenant-backup/src/platform"
	"tenant-backup/src/store"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = time.Hour
)

// Config holds the controller's collaborators and timing.
type Config struct {
	Registry     platform.Registry
	Clock        clock.Clock
	Admission    *Admission
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Controller requests snapshots and waits for them to become ready.
type Controller struct {
	reg       platform.Registry
	clock     clock.Clock
	admission *Admission
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New returns a controller, filling in defaults for unset fields.
func New(cfg Config) *Controller {
	c := &Controller{
		reg:       cfg.Registry,
		clock:     cfg.Clock,
		admission: cfg.Admission,
		interval:  cfg.PollInterval,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	if c.admission == nil {
		c.admission = NewAdmission(1)
	}
	if c.interval <= 0 {
		c.interval = DefaultPollInterval
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "lifecycle")
	return c
}

// RequestSnapshot asks the registry to image rec, naming the snapshot after
// the instance and the current time.
func (c *Controller) RequestSnapshot(ctx context.Context, s platform.Session, rec *model.InstanceRecord) (model.SnapshotJob, error) {
	now := c.clock.Now()
	name := store.SnapshotName(rec.Name, now)
	if err := rec.Advance(model.StatusSnapshotRequested); err != nil {
		return model.SnapshotJob{}, err
	}
	rec.SnapshotName = name

	loc, err := c.reg.CreateImage(ctx, s, rec.ID, name)
	if err != nil {
		return model.SnapshotJob{}, errors.Annotatef(err, "request snapshot of %s", rec.Name)
	}
	id, err := platform.ImageIDFromLocation(loc)
	if err != nil {
		return model.SnapshotJob{}, errors.Annotatef(err, "request snapshot of %s", rec.Name)
	}
	c.logger.Debug("snapshot requested", "instance", rec.Name, "snapshot", name, "location", loc)
	return model.SnapshotJob{LocationRef: loc, ImageID: id, SnapshotName: name, CreatedAt: now}, nil
}

// AwaitCompletion polls the image at a constant interval until it is ACTIVE
// or timeout has elapsed since the first poll. Poll errors are logged and
// polling continues; an ERROR status ends the wait early.
func (c *Controller) AwaitCompletion(ctx context.Context, s platform.Session, job model.SnapshotJob, timeout time.Duration) (string, error) {
	start := c.clock.Now()
	deadline := start.Add(timeout)
	var last platform.ImageStatus
	for {
		st, err := c.reg.ImageStatus(ctx, s, job.LocationRef)
		if err != nil {
			c.logger.Warn("image status query failed", "snapshot", job.SnapshotName, "error", err)
		} else {
			last = st
			switch st.Status {
			case platform.ImageActive:
				if st.ImageID != "" {
					return st.ImageID, nil
				}
				return job.ImageID, nil
			case platform.ImageError:
				return "", errors.Errorf("image %s entered status %s", job.SnapshotName, st.Status)
			}
		}

		now := c.clock.Now()
		remaining := deadline.Sub(now)
		if remaining <= 0 {
			terr := &TimeoutError{
				Snapshot:     job.SnapshotName,
				Waited:       now.Sub(start),
				LastStatus:   last.Status,
				LastProgress: last.Progress,
			}
			c.logger.Error("timeout waiting for image creation",
				"snapshot", job.SnapshotName, "last_status", last.Status, "last_progress", last.Progress)
			return "", terr
		}
		wait := c.interval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-c.clock.After(wait):
		case <-ctx.Done():
			return "", errors.Annotatef(ctx.Err(), "waiting for image %s", job.SnapshotName)
		}
	}
}

// Snapshot takes rec from Discovered to SnapshotReady or SnapshotFailed,
// holding an admission slot for the whole lifecycle.
func (c *Controller) Snapshot(ctx context.Context, s platform.Session, rec *model.InstanceRecord, host string) error {
	release, err := c.admission.Acquire(ctx, host)
	if err != nil {
		rec.Fail(err)
		return err
	}
	defer release()

	job, err := c.RequestSnapshot(ctx, s, rec)
	if err != nil {
		rec.Fail(err)
		return err
	}
	id, err := c.AwaitCompletion(ctx, s, job, c.timeout)
	if err != nil {
		rec.Fail(err)
		return err
	}
	rec.ImageID = id
	return rec.Advance(model.StatusSnapshotReady)
}
