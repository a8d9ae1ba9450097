package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"tenant-backup/src/config"
	"tenant-backup/src/logging"
	"tenant-backup/src/platform"
	"tenant-backup/src/platform/incus"
	"tenant-backup/src/platform/openstack"
	"tenant-backup/src/store"
	"tenant-backup/src/store/directory"
	"tenant-backup/src/store/sshstore"
	"tenant-backup/src/transport"
)

// session is what every subcommand builds from the global flags.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	runID  string
	closer io.Closer
}

func openSession(cmd *cobra.Command, stderr io.Writer) (*session, error) {
	flags := cmd.Root().PersistentFlags()
	path, _ := flags.GetString("config")
	levelName, _ := flags.GetString("log-level")
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	logger, closer, err := logging.New(logging.Options{Console: stderr, Level: level, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	return &session{
		cfg:    cfg,
		logger: logger.With("run_id", runID),
		runID:  runID,
		closer: closer,
	}, nil
}

func (s *session) Close() error { return s.closer.Close() }

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newProvider connects to the configured compute platform. Tests replace it.
var newProvider = func(cfg config.Config, logger *slog.Logger) (platform.Provider, error) {
	switch cfg.Platform {
	case config.PlatformIncus:
		c, err := incus.ConnectLocal(logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.PlatformOpenStack:
		creds := openstack.Credentials{Username: cfg.Username, Password: cfg.Password, DefaultTenant: cfg.DefaultTenant}
		return openstack.New(cfg.IdentityURL, cfg.ComputeURL, creds, logger), nil
	}
	return nil, errors.NotValidf("platform %q", cfg.Platform)
}

// openStore opens the backup destination. override, when set, replaces the
// configured target.
func openStore(cfg config.Config, override string, logger *slog.Logger) (store.Store, error) {
	if override != "" {
		cfg.Target = override
	}
	tgt, err := cfg.ParsedTarget()
	if err != nil {
		return nil, err
	}
	switch tgt.Scheme {
	case "dir":
		b, err := directory.New(tgt.DirPath)
		if err != nil {
			return nil, err
		}
		return b, nil
	case "ssh":
		b, err := sshstore.New(sshstore.Config{
			Target:         tgt,
			KeyFile:        cfg.SSHKeyFile,
			KnownHostsFile: cfg.KnownHostsFile,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, errors.NotValidf("backend %q", tgt.Scheme)
}

func imageSource(cfg config.Config) transport.ImageSource {
	dir := cfg.ImageDir
	if dir == "" && cfg.Platform == config.PlatformIncus {
		dir = incus.DefaultImageDir
	}
	return transport.DirSource{Dir: dir}
}
