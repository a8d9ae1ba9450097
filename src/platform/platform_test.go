package platform_test

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/platform"
)

func TestImageIDFromLocation(t *testing.T) {
	cases := map[string]string{
		"http://10.0.4.3:8774/v2/t1/images/abc-123":  "abc-123",
		"http://10.0.4.3:8774/v2/t1/images/abc-123/": "abc-123",
		"/1.0/operations/0b9f?project=wl":            "0b9f",
	}
	for in, want := range cases {
		got, err := platform.ImageIDFromLocation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := platform.ImageIDFromLocation("no-slash")
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = platform.ImageIDFromLocation("")
	assert.Error(t, err)
}

func TestFake_ScriptedStatuses(t *testing.T) {
	ctx := context.Background()
	f := platform.NewFake()
	f.AddTenant("t1", "wl-tenant", "wl", platform.Server{ID: "s1", Name: "web-1"})
	f.Images["web-1"] = platform.FakeImage{Statuses: []platform.ImageStatus{
		{Status: "SAVING", Progress: 25},
		{Status: platform.ImageActive, Progress: 100},
	}}

	s, err := f.Authenticate(ctx, platform.Scope{TenantID: "t1"})
	require.NoError(t, err)

	loc, err := f.CreateImage(ctx, s, "s1", "snapshot-web-1-20240101000000")
	require.NoError(t, err)

	st, err := f.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, "SAVING", st.Status)
	st, err = f.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, platform.ImageActive, st.Status)
	st, err = f.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, platform.ImageActive, st.Status, "last status repeats")
	assert.Equal(t, 3, f.Polls("web-1"))

	require.NoError(t, f.DeleteImage(ctx, s, "img-web-1"))
	assert.Equal(t, []string{"img-web-1"}, f.Deleted)
	assert.Equal(t, []string{"auth:t1", "create:web-1", "status:web-1", "status:web-1", "status:web-1", "delete:img-web-1"}, f.Events)
}

func TestFake_UnknownServer(t *testing.T) {
	f := platform.NewFake()
	_, err := f.CreateImage(context.Background(), platform.Session{TenantID: "t1"}, "missing", "x")
	assert.True(t, errors.Is(err, errors.NotFound))
}
