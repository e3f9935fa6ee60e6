// Package meta holds build metadata shared by the CLI commands.
package meta

// Version is the pgguard release version. Overridden at build time via
// -ldflags "-X github.com/pgguard/pgguard/internal/meta.Version=...".
var Version = "dev"
