package model_test

import (
	"encoding/json"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/model"
)

func TestInstanceRecord_HappyPath(t *testing.T) {
	r := model.NewInstanceRecord(model.Tenant{ID: "t1", Name: "wl"}, "i1", "web-1")
	require.Equal(t, model.StatusDiscovered, r.Status)

	require.NoError(t, r.Advance(model.StatusSnapshotRequested))
	require.NoError(t, r.Advance(model.StatusSnapshotReady))
	require.NoError(t, r.Advance(model.StatusTransferred))
	assert.Equal(t, "transferred", r.Status.String())
}

func TestInstanceRecord_TransferRequiresReady(t *testing.T) {
	r := model.NewInstanceRecord(model.Tenant{ID: "t1"}, "i1", "web-1")
	require.NoError(t, r.Advance(model.StatusSnapshotRequested))

	err := r.Advance(model.StatusTransferred)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.NotValid))
	assert.Equal(t, model.StatusSnapshotRequested, r.Status)
}

func TestInstanceRecord_FailMatchesStage(t *testing.T) {
	r := model.NewInstanceRecord(model.Tenant{}, "i1", "a")
	require.NoError(t, r.Advance(model.StatusSnapshotRequested))
	r.Fail(errors.New("boom"))
	assert.Equal(t, model.StatusSnapshotFailed, r.Status)
	assert.True(t, r.Status.Failed())

	r2 := model.NewInstanceRecord(model.Tenant{}, "i2", "b")
	require.NoError(t, r2.Advance(model.StatusSnapshotRequested))
	require.NoError(t, r2.Advance(model.StatusSnapshotReady))
	r2.Fail(errors.New("scp"))
	assert.Equal(t, model.StatusTransferFailed, r2.Status)
	assert.EqualError(t, r2.Err, "scp")
}

func TestSummary_Count(t *testing.T) {
	s := model.Summary{Records: []*model.InstanceRecord{
		{Status: model.StatusTransferred},
		{Status: model.StatusSnapshotFailed},
		{Status: model.StatusTransferred},
	}}
	assert.Equal(t, 2, s.Count(model.StatusTransferred))
	assert.Equal(t, 0, s.Count(model.StatusTransferFailed))
}

func TestStatus_JSON(t *testing.T) {
	rec := model.NewInstanceRecord(model.Tenant{ID: "t1", Name: "wl"}, "s1", "web-1")
	rec.Fail(errors.New("boom"))
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"snapshot-failed"`)
	assert.NotContains(t, string(data), "boom")
}
