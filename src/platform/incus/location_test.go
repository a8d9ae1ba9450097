package incus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/platform"
)

func TestParseLocation(t *testing.T) {
	alias, op, err := parseLocation("/1.0/images/aliases/snapshot-web-1-20240101000000?operation=0b9f-11")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-web-1-20240101000000", alias)
	assert.Equal(t, "0b9f-11", op)

	id, err := platform.ImageIDFromLocation("/1.0/images/aliases/snapshot-web-1-20240101000000?operation=0b9f-11")
	require.NoError(t, err)
	assert.Equal(t, alias, id, "provisional image id is the alias")

	_, _, err = parseLocation("/1.0/operations/0b9f")
	assert.Error(t, err)
	_, _, err = parseLocation("/1.0/images/aliases/")
	assert.Error(t, err)
}
