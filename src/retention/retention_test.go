package retention_test

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/retention"
	"tenant-backup/src/store/storetest"
)

// 2024-05-10 09:30 local to the test clock.
var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newManager(mem *storetest.Memory) *retention.Manager {
	return retention.New(retention.Config{Store: mem, Clock: testclock.NewClock(now)})
}

func TestPrune_DateBoundary(t *testing.T) {
	mem := storetest.NewMemory(
		"snapshot-web-1-20240506235900.img", // exactly 4 days ago, late in the day
		"snapshot-web-2-20240506000100.img", // exactly 4 days ago, early in the day
		"snapshot-web-1-20240507000000.img", // 3 days ago
		"snapshot-web-1-20240420120000.img", // long ago
		"snapshot-web-1-20240510080000.img", // today
	)
	res, err := newManager(mem).Prune(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), res.Cutoff)
	assert.ElementsMatch(t, []string{
		"snapshot-web-1-20240420120000.img",
		"snapshot-web-1-20240506235900.img",
		"snapshot-web-2-20240506000100.img",
	}, res.Removed)
	assert.Equal(t, []string{
		"snapshot-web-1-20240507000000.img",
		"snapshot-web-1-20240510080000.img",
	}, mem.Names())
	assert.Equal(t, 1, mem.ListCalls, "one listing round trip")
}

func TestPrune_Idempotent(t *testing.T) {
	mem := storetest.NewMemory(
		"snapshot-a-20240101000000.img",
		"snapshot-a-20240509000000.img",
	)
	m := newManager(mem)

	_, err := m.Prune(context.Background(), 4)
	require.NoError(t, err)
	first := mem.Names()
	assert.Equal(t, 1, mem.DeleteHits)

	res, err := m.Prune(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, first, mem.Names())
	assert.Equal(t, 1, mem.DeleteHits, "the second pass deletes nothing")
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Failed)
}

func TestPrune_SkipsUnexpectedNames(t *testing.T) {
	mem := storetest.NewMemory(
		"README.txt",
		"snapshot-a.img",
		"snapshot-a-20240101000000.img",
	)
	res, err := newManager(mem).Prune(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.txt", "snapshot-a.img"}, res.Skipped)
	assert.Equal(t, []string{"snapshot-a-20240101000000.img"}, res.Removed)
	assert.Equal(t, []string{"README.txt", "snapshot-a.img"}, mem.Names())
}

func TestPrune_RemovalFailureDoesNotAbort(t *testing.T) {
	mem := storetest.NewMemory(
		"snapshot-a-20240101000000.img",
		"snapshot-b-20240101000000.img",
	)
	mem.RemoveErr["snapshot-a-20240101000000.img"] = errors.New("permission denied")

	res, err := newManager(mem).Prune(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-b-20240101000000.img"}, res.Removed)
	assert.Contains(t, res.Failed, "snapshot-a-20240101000000.img")
}

func TestPlan_ListFailure(t *testing.T) {
	mem := storetest.NewMemory()
	mem.ListErr = errors.New("host unreachable")
	_, err := newManager(mem).Plan(context.Background(), 4)
	assert.ErrorContains(t, err, "host unreachable")

	_, err = newManager(storetest.NewMemory()).Plan(context.Background(), -1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestPlan_DoesNotDelete(t *testing.T) {
	mem := storetest.NewMemory("snapshot-a-20240101000000.img")
	p, err := newManager(mem).Plan(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, p.Expired, 1)
	assert.Equal(t, "a", p.Expired[0].Instance)
	assert.Equal(t, []string{"snapshot-a-20240101000000.img"}, mem.Names())
}
