package storetest

import (
	"io"

	"github.com/juju/errors"
)

// Images is a fake transport.ImageSource serving zero-filled images of a
// declared size without allocating them.
type Images struct {
	Sizes   map[string]int64
	OpenErr map[string]error
}

func NewImages() *Images {
	return &Images{Sizes: map[string]int64{}, OpenErr: map[string]error{}}
}

func (i *Images) Open(imageID string) (io.ReadCloser, int64, error) {
	if err := i.OpenErr[imageID]; err != nil {
		return nil, 0, err
	}
	size, ok := i.Sizes[imageID]
	if !ok {
		return nil, 0, errors.NotFoundf("image %s", imageID)
	}
	return io.NopCloser(io.LimitReader(zeros{}, size)), size, nil
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
