package store

import (
	"regexp"
	"time"

	"github.com/juju/errors"
)

const (
	// TimestampLayout is embedded in snapshot and artifact names.
	TimestampLayout = "20060102150405"
	dateLayout      = "20060102"
	artifactExt     = ".img"
)

// The date part is mandatory, the time of day optional.
var artifactPattern = regexp.MustCompile(`^snapshot-(.+)-(\d{8})(\d{6})?\.img$`)

// Artifact is a parsed artifact file name.
type Artifact struct {
	Name     string    `json:"name"`
	Instance string    `json:"instance"`
	Date     time.Time `json:"date"`
}

// SnapshotName is the platform-side name of a snapshot taken at t.
func SnapshotName(instance string, t time.Time) string {
	return "snapshot-" + instance + "-" + t.Format(TimestampLayout)
}

// FileName returns the artifact file name for a snapshot name.
func FileName(snapshotName string) string {
	return snapshotName + artifactExt
}

// ParseArtifact extracts the instance and calendar date from an artifact
// file name. The date is midnight in loc.
func ParseArtifact(name string, loc *time.Location) (Artifact, error) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, errors.NotValidf("artifact name %q", name)
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(dateLayout, m[2], loc)
	if err != nil {
		return Artifact{}, errors.NotValidf("artifact date in %q", name)
	}
	return Artifact{Name: name, Instance: m[1], Date: d}, nil
}
