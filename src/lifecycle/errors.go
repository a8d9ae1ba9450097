package lifecycle

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// TimeoutError is returned when an image does not become ready within the
// wait budget. The snapshot is not cancelled on the platform and may still
// complete later.
type TimeoutError struct {
	Snapshot     string
	Waited       time.Duration
	LastStatus   string
	LastProgress int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for image %s after %s (last status %q, last progress %d%%)",
		e.Snapshot, e.Waited, e.LastStatus, e.LastProgress)
}

// Is lets callers match with errors.Is(err, errors.Timeout).
func (e *TimeoutError) Is(target error) bool {
	return target == errors.Timeout
}
