// Package incus implements platform.Provider on top of a local Incus
// daemon: projects are tenants, instances are published to images.
package incus

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/juju/errors"
	incuscli "github.com/lxc/incus/client"
	"github.com/lxc/incus/shared/api"

	"tenant-backup/src/platform"
)

const aliasPrefix = "/1.0/images/aliases/"

// DefaultImageDir is where the daemon stores image files, one per fingerprint.
const DefaultImageDir = "/var/lib/incus/images"

// Client wraps the official Incus Go client.
type Client struct {
	c      incuscli.InstanceServer
	logger *slog.Logger
}

var _ platform.Provider = (*Client)(nil)

// ConnectLocal connects to the local Incus via the UNIX socket.
func ConnectLocal(logger *slog.Logger) (*Client, error) {
	c, err := incuscli.ConnectIncusUnix("", nil)
	if err != nil {
		return nil, errors.Annotate(err, "connect incus")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{c: c, logger: logger.With("component", "incus")}, nil
}

func (r *Client) project(s platform.Session) incuscli.InstanceServer {
	if s.TenantID == "" {
		return r.c
	}
	return r.c.UseProject(s.TenantID)
}

// Authenticate scopes a session to a project. The UNIX socket is already
// trusted so there is no token to exchange.
func (r *Client) Authenticate(_ context.Context, scope platform.Scope) (platform.Session, error) {
	if _, _, err := r.c.GetServer(); err != nil {
		return platform.Session{}, errors.Annotate(err, "incus server")
	}
	id := scope.TenantID
	if id == "" {
		id = scope.TenantName
	}
	return platform.Session{TenantID: id}, nil
}

func (r *Client) ListTenants(_ context.Context, _ platform.Session) ([]platform.RemoteTenant, error) {
	prjs, err := r.c.GetProjects()
	if err != nil {
		return nil, errors.Annotate(err, "list projects")
	}
	out := make([]platform.RemoteTenant, 0, len(prjs))
	for _, p := range prjs {
		out = append(out, platform.RemoteTenant{ID: p.Name, Name: p.Name, Description: p.Description})
	}
	return out, nil
}

func (r *Client) ListInstances(_ context.Context, s platform.Session) ([]platform.Server, error) {
	insts, err := r.project(s).GetInstances(api.InstanceTypeAny)
	if err != nil {
		return nil, errors.Annotatef(err, "list instances in project %s", s.TenantID)
	}
	out := make([]platform.Server, 0, len(insts))
	for _, i := range insts {
		out = append(out, platform.Server{ID: i.Name, Name: i.Name, Host: i.Location})
	}
	return out, nil
}

// CreateImage publishes the instance as an image aliased to name. The
// returned location names the alias and carries the operation id.
func (r *Client) CreateImage(_ context.Context, s platform.Session, serverID, name string) (string, error) {
	req := api.ImagesPost{
		ImagePut: api.ImagePut{Properties: map[string]string{"description": name}},
		Source:   &api.ImagesPostSource{Type: "instance", Name: serverID},
		Aliases:  []api.ImageAlias{{Name: name}},
	}
	op, err := r.project(s).CreateImage(req, nil)
	if err != nil {
		return "", errors.Annotatef(err, "publish %s", serverID)
	}
	q := url.Values{"operation": []string{op.Get().ID}}
	return aliasPrefix + url.PathEscape(name) + "?" + q.Encode(), nil
}

// ImageStatus maps the publish operation onto the compute status vocabulary.
// Finished operations are eventually forgotten by the daemon, so a missing
// operation falls back to the alias.
func (r *Client) ImageStatus(_ context.Context, s platform.Session, location string) (platform.ImageStatus, error) {
	alias, opID, err := parseLocation(location)
	if err != nil {
		return platform.ImageStatus{}, err
	}
	srv := r.project(s)
	if opID != "" {
		op, _, err := srv.GetOperation(opID)
		switch {
		case err == nil:
			switch op.StatusCode {
			case api.Failure, api.Cancelled:
				return platform.ImageStatus{Status: platform.ImageError}, nil
			case api.Success:
			default:
				return platform.ImageStatus{Status: "SAVING"}, nil
			}
		case !api.StatusErrorCheck(err, http.StatusNotFound):
			return platform.ImageStatus{}, errors.Annotatef(err, "operation %s", opID)
		}
	}
	entry, _, err := srv.GetImageAlias(alias)
	if err != nil {
		if api.StatusErrorCheck(err, http.StatusNotFound) {
			return platform.ImageStatus{Status: "UNKNOWN"}, nil
		}
		return platform.ImageStatus{}, errors.Annotatef(err, "image alias %s", alias)
	}
	return platform.ImageStatus{Status: platform.ImageActive, Progress: 100, ImageID: entry.Target}, nil
}

func (r *Client) DeleteImage(_ context.Context, s platform.Session, imageID string) error {
	op, err := r.project(s).DeleteImage(imageID)
	if err != nil {
		if api.StatusErrorCheck(err, http.StatusNotFound) {
			return nil
		}
		return errors.Annotatef(err, "delete image %s", imageID)
	}
	return errors.Annotatef(op.Wait(), "delete image %s", imageID)
}

func parseLocation(location string) (alias, opID string, err error) {
	u, err := url.Parse(location)
	if err != nil || !strings.HasPrefix(u.Path, aliasPrefix) {
		return "", "", errors.NotValidf("incus image location %q", location)
	}
	alias = strings.TrimPrefix(u.Path, aliasPrefix)
	if alias == "" {
		return "", "", errors.NotValidf("incus image location %q", location)
	}
	return alias, u.Query().Get("operation"), nil
}
