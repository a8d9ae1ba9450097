package platform

import (
	"strings"

	"github.com/juju/errors"
)

// ImageIDFromLocation derives the image identifier from the last path
// segment of a location reference.
func ImageIDFromLocation(location string) (string, error) {
	loc := strings.TrimRight(strings.TrimSpace(location), "/")
	if i := strings.IndexAny(loc, "?#"); i >= 0 {
		loc = loc[:i]
	}
	i := strings.LastIndex(loc, "/")
	if i < 0 || i == len(loc)-1 {
		return "", errors.NotValidf("image location %q", location)
	}
	return loc[i+1:], nil
}
