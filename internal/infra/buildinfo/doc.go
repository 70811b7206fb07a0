// Package buildinfo exposes build-time information for meshtls.
//
// Values are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/meshtls/internal/infra/buildinfo.Version=v1.0.0"
//
// When Commit or GoVersion are not injected they are filled from the
// module build information embedded by the Go toolchain.
package buildinfo
