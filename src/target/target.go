package target

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

// Target represents a parsed backup host URI.
// Examples: dir:/mnt/nas/tenant-backup, ssh://ha-backup@backup.example.com:22
type Target struct {
	// Raw is the original input string.
	Raw string
	// Scheme is the backend scheme ("dir" or "ssh").
	Scheme string

	// DirPath is set when Scheme == "dir" and contains a cleaned absolute path.
	DirPath string

	// User, Host and Port are set when Scheme == "ssh". Root is the remote
	// directory holding the artifact directory; empty means the login home,
	// otherwise it is absolute.
	User string
	Host string
	Port string
	Root string
}

// SupportedSchemes lists the schemes the parser accepts.
var SupportedSchemes = map[string]struct{}{
	"dir": {},
	"ssh": {},
}

// Parse parses a target URI like "dir:/path" or "ssh://user@host/path".
func Parse(raw string) (Target, error) {
	t := Target{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return t, fmt.Errorf("target must not be empty; expected 'dir:/path' or 'ssh://user@host'")
	}
	i := strings.Index(s, ":")
	if i <= 0 || i == len(s)-1 {
		return t, fmt.Errorf("invalid target %q; expected format '<scheme>:<value>'", raw)
	}
	scheme := strings.ToLower(strings.TrimSpace(s[:i]))
	if _, ok := SupportedSchemes[scheme]; !ok {
		return t, fmt.Errorf("unsupported backend scheme %q", scheme)
	}
	t.Scheme = scheme

	switch scheme {
	case "dir":
		val := strings.TrimSpace(s[i+1:])
		clean := filepath.Clean(val)
		if !filepath.IsAbs(clean) {
			return t, fmt.Errorf("directory target must be an absolute path: %q", val)
		}
		t.DirPath = clean
	case "ssh":
		u, err := url.Parse(s)
		if err != nil {
			return t, fmt.Errorf("invalid ssh target %q: %w", raw, err)
		}
		if u.User == nil || u.User.Username() == "" {
			return t, fmt.Errorf("ssh target %q must name a user", raw)
		}
		if _, hasPassword := u.User.Password(); hasPassword {
			return t, fmt.Errorf("ssh target %q must not carry a password; use a private key", raw)
		}
		if u.Hostname() == "" {
			return t, fmt.Errorf("ssh target %q must name a host", raw)
		}
		t.User = u.User.Username()
		t.Host = u.Hostname()
		t.Port = u.Port()
		if t.Port == "" {
			t.Port = "22"
		}
		if u.Path != "/" {
			t.Root = u.Path
		}
	}
	return t, nil
}

// Address returns host:port for ssh targets.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, t.Port)
}

// String returns a canonical string form of the target.
func (t Target) String() string {
	switch t.Scheme {
	case "dir":
		return "dir:" + t.DirPath
	case "ssh":
		s := fmt.Sprintf("ssh://%s@%s", t.User, t.Address())
		s += t.Root
		return s
	}
	return t.Raw
}
