package sshstore

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-backup/src/target"
)

// newLocalBackend wires the backend to an in-process SFTP server and runs
// remote commands locally, both rooted at a temporary directory.
func newLocalBackend(t *testing.T) (*Backend, string, *[]string) {
	t.Helper()
	root := t.TempDir()
	tgt, err := target.Parse("ssh://backup@backup.invalid" + root)
	require.NoError(t, err)

	b, err := New(Config{Target: tgt, KeyFile: "unused"}, nil)
	require.NoError(t, err)

	b.openSFTP = func() (*sftp.Client, error) {
		c1, c2 := net.Pipe()
		srv, err := sftp.NewServer(c1)
		if err != nil {
			return nil, err
		}
		go func() { _ = srv.Serve() }()
		return sftp.NewClientPipe(c2, c2)
	}
	var cmds []string
	b.run = func(ctx context.Context, cmd string) ([]byte, error) {
		cmds = append(cmds, cmd)
		args, err := shellquote.Split(cmd)
		if err != nil {
			return nil, err
		}
		return exec.CommandContext(ctx, args[0], args[1:]...).Output()
	}
	return b, root, &cmds
}

func TestBackend_UploadListRemove(t *testing.T) {
	ctx := context.Background()
	b, root, cmds := newLocalBackend(t)

	n, err := b.Upload(ctx, "snapshot-web-1-20240101000000.img", strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	data, err := os.ReadFile(filepath.Join(root, "snapshots", "snapshot-web-1-20240101000000.img"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	names, err := b.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-web-1-20240101000000.img"}, names)

	require.NoError(t, b.Remove(ctx, "snapshot-web-1-20240101000000.img"))
	require.NoError(t, b.Remove(ctx, "snapshot-web-1-20240101000000.img"), "rm -f tolerates missing files")

	names, err = b.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	dir := filepath.Join(root, "snapshots")
	assert.Equal(t, "ls -1 -- "+dir, (*cmds)[0])
	assert.Equal(t, "rm -f -- "+filepath.Join(dir, "snapshot-web-1-20240101000000.img"), (*cmds)[1])
}

func TestBackend_RemoveQuotesHostileNames(t *testing.T) {
	b, _, cmds := newLocalBackend(t)
	require.NoError(t, b.Remove(context.Background(), "snapshot-x; rm -rf ~-20240101.img"))
	args, err := shellquote.Split((*cmds)[0])
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.True(t, strings.HasSuffix(args[3], "snapshot-x; rm -rf ~-20240101.img"))
}

func TestNew_Validation(t *testing.T) {
	dir, err := target.Parse("dir:/tmp")
	require.NoError(t, err)
	_, err = New(Config{Target: dir, KeyFile: "k"}, nil)
	assert.Error(t, err)

	ssh, err := target.Parse("ssh://u@h")
	require.NoError(t, err)
	_, err = New(Config{Target: ssh}, nil)
	assert.Error(t, err, "a private key is mandatory")
}

func TestBackend_UploadRejectsPaths(t *testing.T) {
	b, _, _ := newLocalBackend(t)
	_, err := b.Upload(context.Background(), "../../etc/passwd", strings.NewReader(""))
	assert.Error(t, err)
}
