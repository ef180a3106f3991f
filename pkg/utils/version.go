// Package utils holds small helpers shared by the relay binaries.
package utils

// Build metadata, overridden at link time with
// -ldflags "-X github.com/upbeatlab/chatrelay/pkg/utils.Version=...".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
