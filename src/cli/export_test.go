package cli

import (
	"log/slog"
	"testing"

	"tenant-backup/src/config"
	"tenant-backup/src/platform"
)

// UseProvider makes every command in the test talk to p.
func UseProvider(t testing.TB, p platform.Provider) {
	old := newProvider
	newProvider = func(config.Config, *slog.Logger) (platform.Provider, error) { return p, nil }
	t.Cleanup(func() { newProvider = old })
}
