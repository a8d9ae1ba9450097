package store_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/store"
)

func TestContextReader(t *testing.T) {
	data, err := io.ReadAll(store.ContextReader(context.Background(), strings.NewReader("image bytes")))
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := io.Copy(io.Discard, store.ContextReader(ctx, strings.NewReader("image bytes")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
