// Package config loads the YAML run configuration.
package config

import (
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"tenant-backup/src/target"
)

// PasswordEnv overrides the password from the file when set.
const PasswordEnv = "TENANT_BACKUP_PASSWORD"

const (
	PlatformOpenStack = "openstack"
	PlatformIncus     = "incus"
)

// Duration decodes either a Go duration string ("90s") or a bare number
// of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.NotValidf("duration at line %d", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return errors.NotValidf("duration %q at line %d", node.Value, node.Line)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the whole run configuration.
type Config struct {
	Platform      string `yaml:"platform"`
	IdentityURL   string `yaml:"identity_url"`
	ComputeURL    string `yaml:"compute_url"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	DefaultTenant string `yaml:"default_tenant"`

	TenantPrefixes []string `yaml:"tenant_prefixes"`
	KeepDays       int      `yaml:"keep_days"`

	SnapshotTimeout        Duration `yaml:"snapshot_timeout"`
	PollInterval           Duration `yaml:"poll_interval"`
	MaxConcurrentSnapshots int      `yaml:"max_concurrent_snapshots"`

	// ImageDir holds the platform's image files; empty selects the
	// platform's standard location.
	ImageDir       string `yaml:"image_dir"`
	Target         string `yaml:"target"`
	SSHKeyFile     string `yaml:"ssh_key_file"`
	KnownHostsFile string `yaml:"known_hosts_file"`

	LogFile     string `yaml:"log_file"`
	MetricsFile string `yaml:"metrics_file"`
}

// Default returns a configuration with every optional field set.
func Default() Config {
	return Config{
		Platform:               PlatformOpenStack,
		KeepDays:               4,
		SnapshotTimeout:        Duration(time.Hour),
		PollInterval:           Duration(5 * time.Second),
		MaxConcurrentSnapshots: 1,
		LogFile:                "backup.log",
	}
}

// Load decodes YAML over the defaults. Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Annotate(err, "decode config")
	}
	return cfg, nil
}

// LoadFile reads path, applies the environment and validates the result.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.NotFoundf("config file %s", path)
		}
		return Config{}, errors.Trace(err)
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return Config{}, errors.Annotatef(err, "%s", path)
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Annotatef(err, "%s", path)
	}
	return cfg, nil
}

// ApplyEnv lets the environment override secrets.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(PasswordEnv); ok && v != "" {
		c.Password = v
	}
}

// Validate checks the configuration for a backup run.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformOpenStack:
		for _, f := range []struct{ name, value string }{
			{"identity_url", c.IdentityURL},
			{"compute_url", c.ComputeURL},
			{"username", c.Username},
			{"password", c.Password},
		} {
			if f.value == "" {
				return errors.NotValidf("empty %s", f.name)
			}
		}
		for _, u := range []string{c.IdentityURL, c.ComputeURL} {
			if p, err := url.Parse(u); err != nil || p.Scheme == "" || p.Host == "" {
				return errors.NotValidf("endpoint %q", u)
			}
		}
	case PlatformIncus:
	default:
		return errors.NotValidf("platform %q", c.Platform)
	}
	if len(c.TenantPrefixes) == 0 {
		return errors.NotValidf("empty tenant_prefixes")
	}
	if c.KeepDays < 0 {
		return errors.NotValidf("keep_days %d", c.KeepDays)
	}
	if c.SnapshotTimeout <= 0 || c.PollInterval <= 0 {
		return errors.NotValidf("non-positive snapshot_timeout or poll_interval")
	}
	if c.MaxConcurrentSnapshots < 1 {
		return errors.NotValidf("max_concurrent_snapshots %d", c.MaxConcurrentSnapshots)
	}
	tgt, err := c.ParsedTarget()
	if err != nil {
		return err
	}
	if tgt.Scheme == "ssh" && c.SSHKeyFile == "" {
		return errors.NotValidf("ssh target without ssh_key_file")
	}
	return nil
}

// ParsedTarget parses the backup destination.
func (c Config) ParsedTarget() (target.Target, error) {
	if c.Target == "" {
		return target.Target{}, errors.NotValidf("empty target")
	}
	return target.Parse(c.Target)
}
