package platform

import "context"

// Image status values reported by the compute platform.
const (
	ImageActive = "ACTIVE"
	ImageError  = "ERROR"
)

// Scope selects what an authentication is valid for. An empty Scope means
// the configured default tenant.
type Scope struct {
	TenantID   string
	TenantName string
}

// Session is a scoped access token plus the tenant it was issued for.
type Session struct {
	Token    string
	TenantID string
}

// RemoteTenant is a tenant as listed by the identity service. Description
// carries the backup prefix matched against the allow-list.
type RemoteTenant struct {
	ID          string
	Name        string
	Description string
}

// Server is a minimal instance listing entry.
type Server struct {
	ID   string
	Name string
	// Host is the compute host identity when the platform exposes it.
	Host string
}

// ImageStatus is the live state of an image being created.
type ImageStatus struct {
	Status   string
	Progress int
	// ImageID is set by platforms that only learn the final image
	// identifier once the image is ready.
	ImageID string
}

// Identity exchanges credentials for scoped sessions and lists tenants.
type Identity interface {
	Authenticate(ctx context.Context, scope Scope) (Session, error)
	ListTenants(ctx context.Context, s Session) ([]RemoteTenant, error)
}

// Registry is a narrow interface over the instance API used by the backup
// run. Keep it small so it stays mockable.
type Registry interface {
	ListInstances(ctx context.Context, s Session) ([]Server, error)
	// CreateImage requests a snapshot and returns the location of the new image.
	CreateImage(ctx context.Context, s Session, serverID, name string) (string, error)
	ImageStatus(ctx context.Context, s Session, location string) (ImageStatus, error)
	DeleteImage(ctx context.Context, s Session, imageID string) error
}

// Provider bundles both sides of a platform driver.
type Provider interface {
	Identity
	Registry
}
