package transport

import (
	"io"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// DefaultImageDir is where the image service keeps image files on the
// platform host.
const DefaultImageDir = "/var/lib/glance/images"

// ImageSource opens the file backing a platform image.
type ImageSource interface {
	Open(imageID string) (io.ReadCloser, int64, error)
}

// DirSource reads images from a local directory, one file per image id.
type DirSource struct {
	Dir string
}

func (d DirSource) Open(imageID string) (io.ReadCloser, int64, error) {
	if imageID == "" || imageID != filepath.Base(imageID) {
		return nil, 0, errors.NotValidf("image id %q", imageID)
	}
	dir := d.Dir
	if dir == "" {
		dir = DefaultImageDir
	}
	f, err := os.Open(filepath.Join(dir, imageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, errors.NotFoundf("image file %s", filepath.Join(dir, imageID))
		}
		return nil, 0, errors.Trace(err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, errors.Trace(err)
	}
	return f, fi.Size(), nil
}
