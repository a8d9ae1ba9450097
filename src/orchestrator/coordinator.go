// Package orchestrator sequences a backup run: tenant discovery, snapshot
// lifecycles, transfer, source cleanup and retention.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/collections/set"
	"github.com/juju/errors"

	"tenant-backup/src/lifecycle"
	"tenant-backup/src/metrics"
	"tenant-backup/src/model"
	"tenant-backup/src/platform"
	"tenant-backup/src/retention"
	"tenant-backup/src/transport"
)

// Config carries everything a run needs. Nothing is read from globals.
type Config struct {
	Identity  platform.Identity
	Registry  platform.Registry
	Lifecycle *lifecycle.Controller
	Transport *transport.Transport
	Retention *retention.Manager
	Metrics   *metrics.Recorder

	TenantPrefixes []string
	KeepDays       int
	// Destination names the backup host in the final tally.
	Destination string

	RunID  string
	Clock  clock.Clock
	Out    io.Writer
	Logger *slog.Logger
}

// Coordinator runs one backup pass.
type Coordinator struct {
	cfg    Config
	allow  set.Strings
	clock  clock.Clock
	out    io.Writer
	logger *slog.Logger
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{cfg: cfg, allow: set.NewStrings(cfg.TenantPrefixes...), clock: cfg.Clock, out: cfg.Out, logger: cfg.Logger}
	if c.clock == nil {
		c.clock = clock.WallClock
	}
	if c.out == nil {
		c.out = io.Discard
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "coordinator")
	return c
}

// Tenants returns the tenants whose backup prefix is allow-listed, in the
// order the identity service lists them.
func (c *Coordinator) Tenants(ctx context.Context, s platform.Session) ([]model.Tenant, error) {
	remote, err := c.cfg.Identity.ListTenants(ctx, s)
	if err != nil {
		return nil, err
	}
	var out []model.Tenant
	for _, t := range remote {
		if c.allow.Contains(t.Description) {
			out = append(out, model.Tenant{ID: t.ID, Name: t.Name, BackupPrefix: t.Description})
		}
	}
	return out, nil
}

// Discover lists the instances a run would back up without touching them.
// Records are returned in the Discovered state.
func (c *Coordinator) Discover(ctx context.Context) ([]*model.InstanceRecord, error) {
	admin, err := c.cfg.Identity.Authenticate(ctx, platform.Scope{})
	if err != nil {
		return nil, fatal("authenticate", err)
	}
	tenants, err := c.Tenants(ctx, admin)
	if err != nil {
		return nil, fatal("list tenants", err)
	}
	var recs []*model.InstanceRecord
	for _, t := range tenants {
		s, err := c.cfg.Identity.Authenticate(ctx, platform.Scope{TenantID: t.ID})
		if err != nil {
			return recs, fatal("authenticate tenant "+t.Name, err)
		}
		servers, err := c.cfg.Registry.ListInstances(ctx, s)
		if err != nil {
			return recs, fatal("list instances of "+t.Name, err)
		}
		for _, srv := range servers {
			recs = append(recs, model.NewInstanceRecord(t, srv.ID, srv.Name))
		}
	}
	return recs, nil
}

// Run executes a full backup pass. The returned error is a *FatalError when
// setup failed; everything else is reported through the summary.
func (c *Coordinator) Run(ctx context.Context) (model.Summary, error) {
	start := c.clock.Now()
	summary := model.Summary{RunID: c.cfg.RunID}

	admin, err := c.cfg.Identity.Authenticate(ctx, platform.Scope{})
	if err != nil {
		c.logger.Error("authentication failed", "error", err)
		return summary, fatal("authenticate", err)
	}
	tenants, err := c.Tenants(ctx, admin)
	if err != nil {
		c.logger.Error("tenant listing failed", "error", err)
		return summary, fatal("list tenants", err)
	}
	c.logger.Info("tenants selected", "count", len(tenants))

	for _, t := range tenants {
		recs, err := c.backupTenant(ctx, t)
		summary.Records = append(summary.Records, recs...)
		if err != nil {
			return summary, err
		}
	}
	summary.Attempted = len(summary.Records)
	if err := ctx.Err(); err != nil {
		return summary, fatal("backup interrupted", err)
	}

	var ready []*model.InstanceRecord
	for _, r := range summary.Records {
		if r.Status == model.StatusSnapshotReady {
			ready = append(ready, r)
		}
	}
	summary.SnapshotsReady = len(ready)

	summary.Bytes = c.cfg.Transport.TransferAll(ctx, ready)
	summary.Successful = summary.Count(model.StatusTransferred)

	c.cleanupSource(ctx, tenants, summary.Records)

	res, err := c.cfg.Retention.Prune(ctx, c.cfg.KeepDays)
	if err != nil {
		c.logger.Error("retention pass failed", "error", err)
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	summary.Pruned = len(res.Removed)

	end := c.clock.Now()
	summary.Elapsed = end.Sub(start)
	c.report(summary)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.Observe(summary, end)
	}
	return summary, nil
}

// backupTenant snapshots every instance of t, one at a time.
func (c *Coordinator) backupTenant(ctx context.Context, t model.Tenant) ([]*model.InstanceRecord, error) {
	fmt.Fprintf(c.out, "Backing up tenant: %s\n", t.Name)
	logger := c.logger.With("tenant", t.Name)

	s, err := c.cfg.Identity.Authenticate(ctx, platform.Scope{TenantID: t.ID})
	if err != nil {
		logger.Error("tenant authentication failed", "error", err)
		return nil, fatal("authenticate tenant "+t.Name, err)
	}
	servers, err := c.cfg.Registry.ListInstances(ctx, s)
	if err != nil {
		logger.Error("instance listing failed", "error", err)
		return nil, fatal("list instances of "+t.Name, err)
	}

	recs := make([]*model.InstanceRecord, 0, len(servers))
	for _, srv := range servers {
		if err := ctx.Err(); err != nil {
			return recs, fatal("backup interrupted", err)
		}
		rec := model.NewInstanceRecord(t, srv.ID, srv.Name)
		recs = append(recs, rec)

		fmt.Fprintf(c.out, "  %-20s...", rec.Name)
		if err := c.cfg.Lifecycle.Snapshot(ctx, s, rec, srv.Host); err != nil {
			logger.Error("snapshot failed", "instance", rec.Name, "error", err)
			fmt.Fprintln(c.out, "FAILED")
			var terr *lifecycle.TimeoutError
			if errors.As(err, &terr) {
				fmt.Fprintln(c.out, "  Error: Timeout waiting for image creation.")
				fmt.Fprintf(c.out, "    Last status was %s\n", terr.LastStatus)
				fmt.Fprintf(c.out, "    Last progress was %d\n", terr.LastProgress)
			}
			continue
		}
		logger.Info("snapshot ready", "instance", rec.Name, "image_id", rec.ImageID)
		fmt.Fprintln(c.out, "success")
	}
	return recs, nil
}

// cleanupSource deletes the platform image of every transferred instance.
// Failures are logged and the image is left behind; nothing is retried.
func (c *Coordinator) cleanupSource(ctx context.Context, tenants []model.Tenant, recs []*model.InstanceRecord) {
	fmt.Fprintln(c.out, "Removing snapshots from the compute platform")
	for _, t := range tenants {
		var todo []*model.InstanceRecord
		for _, r := range recs {
			if r.TenantID == t.ID && r.Status == model.StatusTransferred {
				todo = append(todo, r)
			}
		}
		if len(todo) == 0 {
			continue
		}
		logger := c.logger.With("tenant", t.Name)
		s, err := c.cfg.Identity.Authenticate(ctx, platform.Scope{TenantID: t.ID})
		if err != nil {
			logger.Error("cannot authenticate for cleanup; source images left in place", "count", len(todo), "error", err)
			continue
		}
		for _, r := range todo {
			if err := c.cfg.Registry.DeleteImage(ctx, s, r.ImageID); err != nil {
				logger.Error("source image delete failed", "instance", r.Name, "image_id", r.ImageID, "error", err)
				continue
			}
			logger.Info("source image deleted", "instance", r.Name, "image_id", r.ImageID)
		}
	}
}

func (c *Coordinator) report(s model.Summary) {
	minutes := int(s.Elapsed / time.Minute)
	gb := float64(s.Bytes) / 1e9
	fmt.Fprintf(c.out, "\n%d of %d successfully backed up in %d minutes.\n", s.Successful, s.Attempted, minutes)
	fmt.Fprintf(c.out, "%.1fGB transferred to %s.\n", gb, c.cfg.Destination)
	c.logger.Info("run finished",
		"attempted", s.Attempted,
		"snapshots_ready", s.SnapshotsReady,
		"successful", s.Successful,
		"bytes", s.Bytes,
		"pruned", s.Pruned,
		"elapsed", s.Elapsed.Round(time.Second),
	)
}
