package incus

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	incuscli "github.com/lxc/incus/client"
	"github.com/lxc/incus/shared/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/platform"
)

// fakeServer implements the parts of InstanceServer the driver uses.
// Anything else panics through the nil embedded interface.
type fakeServer struct {
	incuscli.InstanceServer

	project   string
	projects  []api.Project
	instances map[string][]api.Instance
	ops       map[string]api.StatusCode
	aliases   map[string]string // alias -> fingerprint
	published []api.ImagesPost
	deleted   []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{instances: map[string][]api.Instance{}, ops: map[string]api.StatusCode{}, aliases: map[string]string{}}
}

func (f *fakeServer) GetServer() (*api.Server, string, error) { return &api.Server{}, "", nil }

func (f *fakeServer) GetProjects() ([]api.Project, error) { return f.projects, nil }

func (f *fakeServer) UseProject(name string) incuscli.InstanceServer {
	f.project = name
	return f
}

func (f *fakeServer) GetInstances(api.InstanceType) ([]api.Instance, error) {
	return f.instances[f.project], nil
}

func (f *fakeServer) CreateImage(req api.ImagesPost, _ *incuscli.ImageCreateArgs) (incuscli.Operation, error) {
	f.published = append(f.published, req)
	f.ops["op-1"] = api.Running
	return fakeOp{id: "op-1"}, nil
}

func (f *fakeServer) GetOperation(id string) (*api.Operation, string, error) {
	code, ok := f.ops[id]
	if !ok {
		return nil, "", api.StatusErrorf(http.StatusNotFound, "operation not found")
	}
	return &api.Operation{ID: id, StatusCode: code}, "", nil
}

func (f *fakeServer) GetImageAlias(name string) (*api.ImageAliasesEntry, string, error) {
	fp, ok := f.aliases[name]
	if !ok {
		return nil, "", api.StatusErrorf(http.StatusNotFound, "alias not found")
	}
	return &api.ImageAliasesEntry{Name: name, ImageAliasesEntryPut: api.ImageAliasesEntryPut{Target: fp}}, "", nil
}

func (f *fakeServer) DeleteImage(fp string) (incuscli.Operation, error) {
	for _, known := range f.aliases {
		if known == fp {
			f.deleted = append(f.deleted, fp)
			return fakeOp{id: "op-del"}, nil
		}
	}
	return nil, api.StatusErrorf(http.StatusNotFound, "image not found")
}

type fakeOp struct {
	incuscli.Operation
	id string
}

func (o fakeOp) Get() api.Operation { return api.Operation{ID: o.id} }
func (o fakeOp) Wait() error        { return nil }

func newTestClient(f *fakeServer) *Client {
	return &Client{c: f, logger: slog.Default()}
}

func TestClient_TenantsAndInstances(t *testing.T) {
	f := newFakeServer()
	f.projects = []api.Project{
		{Name: "default"},
		{Name: "wl-prod", ProjectPut: api.ProjectPut{Description: "wl"}},
	}
	f.instances["wl-prod"] = []api.Instance{{Name: "web-1", Location: "node-2"}}
	c := newTestClient(f)
	ctx := context.Background()

	admin, err := c.Authenticate(ctx, platform.Scope{})
	require.NoError(t, err)
	tenants, err := c.ListTenants(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, []platform.RemoteTenant{
		{ID: "default", Name: "default"},
		{ID: "wl-prod", Name: "wl-prod", Description: "wl"},
	}, tenants)

	s, err := c.Authenticate(ctx, platform.Scope{TenantID: "wl-prod"})
	require.NoError(t, err)
	servers, err := c.ListInstances(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, []platform.Server{{ID: "web-1", Name: "web-1", Host: "node-2"}}, servers)
	assert.Equal(t, "wl-prod", f.project)
}

func TestClient_PublishLifecycle(t *testing.T) {
	f := newFakeServer()
	c := newTestClient(f)
	ctx := context.Background()
	s := platform.Session{TenantID: "wl-prod"}

	loc, err := c.CreateImage(ctx, s, "web-1", "snapshot-web-1-20240501100000")
	require.NoError(t, err)
	assert.Equal(t, "/1.0/images/aliases/snapshot-web-1-20240501100000?operation=op-1", loc)
	require.Len(t, f.published, 1)
	assert.Equal(t, "web-1", f.published[0].Source.Name)
	assert.Equal(t, "instance", f.published[0].Source.Type)

	st, err := c.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, "SAVING", st.Status)

	f.ops["op-1"] = api.Success
	f.aliases["snapshot-web-1-20240501100000"] = "fp-abc"
	st, err = c.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, platform.ImageStatus{Status: platform.ImageActive, Progress: 100, ImageID: "fp-abc"}, st)

	delete(f.ops, "op-1")
	st, err = c.ImageStatus(ctx, s, loc)
	require.NoError(t, err)
	assert.Equal(t, "fp-abc", st.ImageID, "forgotten operations fall back to the alias")

	require.NoError(t, c.DeleteImage(ctx, s, "fp-abc"))
	assert.Equal(t, []string{"fp-abc"}, f.deleted)
	assert.NoError(t, c.DeleteImage(ctx, s, "fp-gone"), "already deleted is not an error")
}

func TestClient_FailedPublish(t *testing.T) {
	f := newFakeServer()
	c := newTestClient(f)
	s := platform.Session{TenantID: "wl-prod"}
	loc, err := c.CreateImage(context.Background(), s, "web-2", "snapshot-web-2-20240501100000")
	require.NoError(t, err)

	f.ops["op-1"] = api.Failure
	st, err := c.ImageStatus(context.Background(), s, loc)
	require.NoError(t, err)
	assert.Equal(t, platform.ImageError, st.Status)
}
