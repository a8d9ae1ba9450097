package safety_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/safety"
)

func TestConfirm_AutoYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := safety.Confirm(safety.Options{Yes: true}, strings.NewReader(""), &out, "proceed?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out.String(), "no prompt when --yes is given")
}

func TestConfirm_DryRunDeclines(t *testing.T) {
	ok, err := safety.Confirm(safety.Options{DryRun: true, Yes: true}, strings.NewReader("y\n"), nil, "proceed?")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirm_UserInput(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"YES", true},
		{"No\n", false},
		{"\n", false},
		{"", false},
	}
	for _, c := range cases {
		var out bytes.Buffer
		got, err := safety.Confirm(safety.Options{}, strings.NewReader(c.in), &out, "Delete 3 snapshots? ")
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "input %q", c.in)
		assert.Equal(t, "Delete 3 snapshots? [y/N]: ", out.String())
	}
}
