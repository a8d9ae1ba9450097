package lifecycle

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sync/semaphore"
)

// Admission bounds how many snapshots may be outstanding at once. There is
// a global limit and, when the compute host of an instance is known, at
// most one snapshot per host. The default limit of 1 keeps runs strictly
// sequential.
type Admission struct {
	global *semaphore.Weighted

	mu      sync.Mutex
	perHost map[string]*semaphore.Weighted
	active  int
}

// NewAdmission returns an admission policy allowing limit concurrent
// snapshots. Limits below 1 are treated as 1.
func NewAdmission(limit int) *Admission {
	if limit < 1 {
		limit = 1
	}
	return &Admission{
		global:  semaphore.NewWeighted(int64(limit)),
		perHost: map[string]*semaphore.Weighted{},
	}
}

func (a *Admission) hostSem(host string) *semaphore.Weighted {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.perHost[host]
	if !ok {
		s = semaphore.NewWeighted(1)
		a.perHost[host] = s
	}
	return s
}

// Acquire blocks until a snapshot on host may start. The returned func
// releases the slot and must be called exactly once.
func (a *Admission) Acquire(ctx context.Context, host string) (func(), error) {
	var hs *semaphore.Weighted
	if host != "" {
		hs = a.hostSem(host)
		if err := hs.Acquire(ctx, 1); err != nil {
			return nil, errors.Annotatef(err, "admission for host %s", host)
		}
	}
	if err := a.global.Acquire(ctx, 1); err != nil {
		if hs != nil {
			hs.Release(1)
		}
		return nil, errors.Annotate(err, "admission")
	}
	a.mu.Lock()
	a.active++
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			a.active--
			a.mu.Unlock()
			a.global.Release(1)
			if hs != nil {
				hs.Release(1)
			}
		})
	}, nil
}

// Active returns the number of snapshots currently admitted.
func (a *Admission) Active() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}
