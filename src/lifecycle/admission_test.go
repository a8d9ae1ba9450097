package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/lifecycle"
)

func TestAdmission_DefaultIsSequential(t *testing.T) {
	a := lifecycle.NewAdmission(0)
	release, err := a.Acquire(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Active())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.Acquire(ctx, "")
	assert.Error(t, err, "second snapshot must wait for the first")

	release()
	release()
	assert.Equal(t, 0, a.Active())

	release2, err := a.Acquire(context.Background(), "")
	require.NoError(t, err)
	release2()
}

func TestAdmission_OnePerHost(t *testing.T) {
	a := lifecycle.NewAdmission(2)
	r1, err := a.Acquire(context.Background(), "compute-1")
	require.NoError(t, err)
	r2, err := a.Acquire(context.Background(), "compute-2")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Active())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = a.Acquire(ctx, "compute-1")
	assert.Error(t, err, "host already busy")

	r1()
	r3, err := a.Acquire(context.Background(), "compute-1")
	require.NoError(t, err)
	r2()
	r3()
	assert.Equal(t, 0, a.Active())
}
