// Package sshstore keeps artifacts on a remote host reached over SSH.
// Uploads go through SFTP; listing and removal run remote shell commands.
// Authentication is by private key only.
package sshstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	shellquote "github.com/kballard/go-shellquote"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"tenant-backup/src/store"
	"tenant-backup/src/target"
)

// Config describes how to reach the backup host.
type Config struct {
	Target target.Target
	// KeyFile is a PEM private key. Passwords are never used.
	KeyFile string
	// KnownHostsFile pins host keys; when empty the host key is not checked.
	KnownHostsFile string
	DialTimeout    time.Duration
}

// Backend implements store.Store over SSH.
type Backend struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.Mutex
	client *ssh.Client

	// seams for tests
	openSFTP func() (*sftp.Client, error)
	run      func(ctx context.Context, cmd string) ([]byte, error)
}

var _ store.Store = (*Backend)(nil)

// New validates cfg and prepares a lazily connected backend.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Target.Scheme != "ssh" {
		return nil, errors.NotValidf("ssh target %q", cfg.Target.Raw)
	}
	if cfg.KeyFile == "" {
		return nil, errors.NotValidf("empty private key file")
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{cfg: cfg, logger: logger.With("component", "sshstore", "host", cfg.Target.Host)}
	b.openSFTP = b.sftpOverSSH
	b.run = b.runOverSSH
	return b, nil
}

func (b *Backend) clientConfig() (*ssh.ClientConfig, error) {
	pem, err := os.ReadFile(b.cfg.KeyFile)
	if err != nil {
		return nil, errors.Annotate(err, "read private key")
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, errors.Annotate(err, "parse private key")
	}
	hostKey := ssh.InsecureIgnoreHostKey()
	if b.cfg.KnownHostsFile != "" {
		hostKey, err = knownhosts.New(b.cfg.KnownHostsFile)
		if err != nil {
			return nil, errors.Annotate(err, "load known hosts")
		}
	} else {
		b.logger.Warn("host key checking disabled; set known_hosts_file to enable it")
	}
	return &ssh.ClientConfig{
		User:            b.cfg.Target.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKey,
		Timeout:         b.cfg.DialTimeout,
	}, nil
}

func (b *Backend) conn() (*ssh.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}
	cc, err := b.clientConfig()
	if err != nil {
		return nil, err
	}
	c, err := ssh.Dial("tcp", b.cfg.Target.Address(), cc)
	if err != nil {
		return nil, errors.Annotatef(err, "dial %s", b.cfg.Target.Address())
	}
	b.client = c
	return c, nil
}

func (b *Backend) sftpOverSSH() (*sftp.Client, error) {
	c, err := b.conn()
	if err != nil {
		return nil, err
	}
	sc, err := sftp.NewClient(c)
	return sc, errors.Annotate(err, "start sftp")
}

func (b *Backend) runOverSSH(ctx context.Context, cmd string) ([]byte, error) {
	c, err := b.conn()
	if err != nil {
		return nil, err
	}
	sess, err := c.NewSession()
	if err != nil {
		return nil, errors.Annotate(err, "open session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- sess.Run(cmd) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = sess.Signal(ssh.SIGKILL)
		return nil, ctx.Err()
	}
	if err != nil {
		return stdout.Bytes(), errors.Annotatef(err, "%s: %s", cmd, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (b *Backend) dir() string { return path.Join(b.cfg.Target.Root, store.Dir) }

// Upload streams r to a temporary name and renames it into place.
func (b *Backend) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return 0, errors.NotValidf("artifact name %q", name)
	}
	sc, err := b.openSFTP()
	if err != nil {
		return 0, err
	}
	defer sc.Close()

	if err := sc.MkdirAll(b.dir()); err != nil {
		return 0, errors.Annotatef(err, "create %s", b.dir())
	}
	final := path.Join(b.dir(), name)
	tmp := path.Join(b.dir(), "."+name+".part")
	f, err := sc.Create(tmp)
	if err != nil {
		return 0, errors.Annotatef(err, "create %s", tmp)
	}
	n, err := io.Copy(f, store.ContextReader(ctx, r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = sc.Remove(tmp)
		return n, errors.Annotatef(err, "upload %s", name)
	}
	if err := sc.Rename(tmp, final); err != nil {
		_ = sc.Remove(tmp)
		return n, errors.Annotatef(err, "rename %s", name)
	}
	return n, nil
}

// List runs `ls` in the artifact directory on the remote host.
func (b *Backend) List(ctx context.Context) ([]string, error) {
	out, err := b.run(ctx, shellquote.Join("ls", "-1", "--", b.dir()))
	if err != nil {
		return nil, errors.Annotate(err, "list artifacts")
	}
	var names []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

// Remove runs `rm -f` so a missing artifact is not an error.
func (b *Backend) Remove(ctx context.Context, name string) error {
	if name == "" || name != path.Base(name) {
		return errors.NotValidf("artifact name %q", name)
	}
	_, err := b.run(ctx, shellquote.Join("rm", "-f", "--", path.Join(b.dir(), name)))
	return errors.Annotatef(err, "remove %s", name)
}

func (b *Backend) String() string { return b.cfg.Target.Host }

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}
