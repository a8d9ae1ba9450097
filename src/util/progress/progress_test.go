package progress_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/util/progress"
)

func TestReader_CountsAndReports(t *testing.T) {
	var out bytes.Buffer
	r := progress.NewReader(strings.NewReader(strings.Repeat("x", 2000)), 2000, "web-1", &out)

	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), n)
	assert.Equal(t, int64(2000), r.N())
	assert.Contains(t, out.String(), "[web-1] 100.0% (2.0 kB/2.0 kB)")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestReader_NilOutput(t *testing.T) {
	r := progress.NewReader(strings.NewReader("abc"), 0, "x", nil)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
	assert.Equal(t, int64(3), r.N())
}
