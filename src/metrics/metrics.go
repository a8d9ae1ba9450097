// Package metrics exports run results as Prometheus metrics, written to a
// node-exporter textfile since a backup run is a short-lived process.
package metrics

import (
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"tenant-backup/src/model"
)

// Recorder holds the metrics of one run on a private registry.
type Recorder struct {
	reg *prometheus.Registry

	instances *prometheus.GaugeVec
	bytes     prometheus.Gauge
	pruned    prometheus.Gauge
	duration  prometheus.Gauge
	lastRun   prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		instances: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tenant_backup_instances",
				Help: "Instances processed in the last run by final status",
			},
			[]string{"status"},
		),
		bytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_backup_transferred_bytes",
			Help: "Bytes transferred to the backup host in the last run",
		}),
		pruned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_backup_pruned_artifacts",
			Help: "Artifacts removed by retention in the last run",
		}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_backup_run_duration_seconds",
			Help: "Wall time of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tenant_backup_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	r.reg.MustRegister(r.instances, r.bytes, r.pruned, r.duration, r.lastRun)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Observe records a finished run.
func (r *Recorder) Observe(s model.Summary, finished time.Time) {
	for _, st := range []model.Status{
		model.StatusSnapshotFailed,
		model.StatusTransferred,
		model.StatusTransferFailed,
	} {
		r.instances.WithLabelValues(st.String()).Set(float64(s.Count(st)))
	}
	r.bytes.Set(float64(s.Bytes))
	r.pruned.Set(float64(s.Pruned))
	r.duration.Set(s.Elapsed.Seconds())
	r.lastRun.Set(float64(finished.Unix()))
}

// WriteTextfile atomically writes all metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	return errors.Annotatef(prometheus.WriteToTextfile(path, r.reg), "write metrics to %s", path)
}
