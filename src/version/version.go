// Package version holds the build version, overridden with
// -ldflags "-X tenant-backup/src/version.Version=...".
package version

var Version = "0.1.0-dev"
