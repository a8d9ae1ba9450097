package directory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/juju/errors"

	"tenant-backup/src/store"
)

// Backend implements store.Store on a mounted filesystem.
type Backend struct {
	Root string // absolute directory path
}

var _ store.Store = (*Backend)(nil)

func New(root string) (*Backend, error) {
	if root == "" {
		return nil, errors.New("directory backend root must not be empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Annotate(err, "stat root")
	}
	if !info.IsDir() {
		return nil, errors.NotValidf("root %s (not a directory)", root)
	}
	return &Backend{Root: root}, nil
}

func (b *Backend) dir() string { return filepath.Join(b.Root, store.Dir) }

// Upload writes to a temporary file and renames it into place so a partial
// transfer never looks like an artifact.
func (b *Backend) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(b.dir(), 0o755); err != nil {
		return 0, errors.Trace(err)
	}
	final := filepath.Join(b.dir(), name)
	tmp, err := os.CreateTemp(b.dir(), "."+name+".*")
	if err != nil {
		return 0, errors.Trace(err)
	}
	n, err := io.Copy(tmp, store.ContextReader(ctx, r))
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return n, errors.Annotatef(err, "write %s", name)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return n, errors.Trace(err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return n, errors.Trace(err)
	}
	return n, nil
}

func (b *Backend) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(b.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Trace(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		// skip hidden, including in-flight uploads
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) Remove(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(b.dir(), name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Trace(err)
	}
	return nil
}

func (b *Backend) String() string { return b.Root }

func (b *Backend) Close() error { return nil }

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return errors.NotValidf("artifact name %q", name)
	}
	return nil
}
