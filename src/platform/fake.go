package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/juju/errors"
)

// FakeImage scripts how a snapshot of one server behaves.
type FakeImage struct {
	// Statuses are returned by successive ImageStatus calls; the last one
	// repeats. Empty means ACTIVE immediately.
	Statuses []ImageStatus
	// CreateErr fails the CreateImage call.
	CreateErr error
}

// Fake is an in-memory Provider for unit tests.
type Fake struct {
	mu sync.Mutex

	Tenants   []RemoteTenant
	Servers   map[string][]Server  // tenant id -> servers
	Images    map[string]FakeImage // server name -> behaviour
	AuthErr   error
	TenantErr error
	DeleteErr map[string]error // image id -> error
	// InstancesErr fails ListInstances for the given tenant id.
	InstancesErr map[string]error

	// Events is an ordered log of calls, e.g. "create:web-1", "status:web-1", "delete:img-web-1".
	Events  []string
	Deleted []string

	polls   map[string]int
	byImage map[string]string // image id -> server name
}

// NewFake returns an empty fake provider.
func NewFake() *Fake {
	return &Fake{
		Servers:      map[string][]Server{},
		Images:       map[string]FakeImage{},
		DeleteErr:    map[string]error{},
		InstancesErr: map[string]error{},
		polls:        map[string]int{},
		byImage:      map[string]string{},
	}
}

// AddTenant registers a tenant with the given prefix and servers.
func (f *Fake) AddTenant(id, name, prefix string, servers ...Server) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tenants = append(f.Tenants, RemoteTenant{ID: id, Name: name, Description: prefix})
	f.Servers[id] = append(f.Servers[id], servers...)
}

func (f *Fake) record(ev string) {
	f.Events = append(f.Events, ev)
}

func (f *Fake) Authenticate(_ context.Context, scope Scope) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("auth:" + scope.TenantID)
	if f.AuthErr != nil {
		return Session{}, f.AuthErr
	}
	tid := scope.TenantID
	if tid == "" {
		tid = "admin"
	}
	return Session{Token: "token-" + tid, TenantID: tid}, nil
}

func (f *Fake) ListTenants(_ context.Context, _ Session) ([]RemoteTenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TenantErr != nil {
		return nil, f.TenantErr
	}
	out := append([]RemoteTenant(nil), f.Tenants...)
	return out, nil
}

func (f *Fake) ListInstances(_ context.Context, s Session) ([]Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.InstancesErr[s.TenantID]; err != nil {
		return nil, err
	}
	out := append([]Server(nil), f.Servers[s.TenantID]...)
	return out, nil
}

func (f *Fake) CreateImage(_ context.Context, s Session, serverID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	server, ok := f.findServer(s.TenantID, serverID)
	if !ok {
		return "", errors.NotFoundf("server %q", serverID)
	}
	f.record("create:" + server.Name)
	if err := f.Images[server.Name].CreateErr; err != nil {
		return "", err
	}
	id := "img-" + server.Name
	f.byImage[id] = server.Name
	return fmt.Sprintf("http://compute.invalid/v2/%s/images/%s", s.TenantID, id), nil
}

func (f *Fake) ImageStatus(_ context.Context, _ Session, location string) (ImageStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := ImageIDFromLocation(location)
	if err != nil {
		return ImageStatus{}, err
	}
	name, ok := f.byImage[id]
	if !ok {
		return ImageStatus{}, errors.NotFoundf("image %q", id)
	}
	f.record("status:" + name)
	n := f.polls[name]
	f.polls[name] = n + 1
	script := f.Images[name].Statuses
	if len(script) == 0 {
		return ImageStatus{Status: ImageActive, Progress: 100}, nil
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n], nil
}

func (f *Fake) DeleteImage(_ context.Context, _ Session, imageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:" + imageID)
	if err := f.DeleteErr[imageID]; err != nil {
		return err
	}
	f.Deleted = append(f.Deleted, imageID)
	sort.Strings(f.Deleted)
	return nil
}

// Polls returns how many status queries were made for a server's image.
func (f *Fake) Polls(serverName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[serverName]
}

func (f *Fake) findServer(tenantID, serverID string) (Server, bool) {
	for _, s := range f.Servers[tenantID] {
		if s.ID == serverID {
			return s, true
		}
	}
	return Server{}, false
}
