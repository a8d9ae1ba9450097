package model

import (
	"time"

	"github.com/juju/errors"
)

// Status is the lifecycle position of one instance within a run.
type Status int

const (
	StatusDiscovered Status = iota
	StatusSnapshotRequested
	StatusSnapshotReady
	StatusSnapshotFailed
	StatusTransferred
	StatusTransferFailed
)

var statusNames = map[Status]string{
	StatusDiscovered:        "discovered",
	StatusSnapshotRequested: "snapshot-requested",
	StatusSnapshotReady:     "snapshot-ready",
	StatusSnapshotFailed:    "snapshot-failed",
	StatusTransferred:       "transferred",
	StatusTransferFailed:    "transfer-failed",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Failed reports whether the status is a terminal failure.
func (s Status) Failed() bool {
	return s == StatusSnapshotFailed || s == StatusTransferFailed
}

// allowed lists the legal predecessor for each status.
var allowed = map[Status][]Status{
	StatusSnapshotRequested: {StatusDiscovered},
	StatusSnapshotReady:     {StatusSnapshotRequested},
	StatusSnapshotFailed:    {StatusDiscovered, StatusSnapshotRequested},
	StatusTransferred:       {StatusSnapshotReady},
	StatusTransferFailed:    {StatusSnapshotReady},
}

// Tenant is a compute scope selected for backup because its prefix is allow-listed.
type Tenant struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BackupPrefix string `json:"backupPrefix"`
}

// InstanceRecord tracks one instance through a single run.
type InstanceRecord struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TenantID     string `json:"tenantId"`
	TenantName   string `json:"tenantName"`
	SnapshotName string `json:"snapshotName,omitempty"`
	ImageID      string `json:"imageId,omitempty"`
	Status       Status `json:"status"`
	Bytes        int64  `json:"bytes,omitempty"`
	Err          error  `json:"-"`
}

// NewInstanceRecord returns a record in the Discovered state.
func NewInstanceRecord(t Tenant, id, name string) *InstanceRecord {
	return &InstanceRecord{ID: id, Name: name, TenantID: t.ID, TenantName: t.Name, Status: StatusDiscovered}
}

// Advance moves the record to next, rejecting transitions the lifecycle does not permit.
func (r *InstanceRecord) Advance(next Status) error {
	for _, from := range allowed[next] {
		if r.Status == from {
			r.Status = next
			return nil
		}
	}
	return errors.NotValidf("transition %s -> %s for instance %q", r.Status, next, r.Name)
}

// Fail records err and moves the record to the failure status matching its stage.
func (r *InstanceRecord) Fail(err error) {
	r.Err = err
	if r.Status == StatusSnapshotReady {
		r.Status = StatusTransferFailed
		return
	}
	if r.Status == StatusDiscovered || r.Status == StatusSnapshotRequested {
		r.Status = StatusSnapshotFailed
	}
}

// SnapshotJob identifies where to poll for a snapshot in progress.
type SnapshotJob struct {
	LocationRef  string
	ImageID      string
	SnapshotName string
	CreatedAt    time.Time
}

// Summary is the end-of-run report.
type Summary struct {
	RunID          string            `json:"runId"`
	Attempted      int               `json:"attempted"`
	SnapshotsReady int               `json:"snapshotsReady"`
	Successful     int               `json:"successful"`
	Bytes          int64             `json:"bytes"`
	Pruned         int               `json:"pruned"`
	Elapsed        time.Duration     `json:"elapsed"`
	Records        []*InstanceRecord `json:"records"`
}

// Count returns how many records are in status s.
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Records {
		if r.Status == status {
			n++
		}
	}
	return n
}
