// Package buildinfo holds build-time metadata, injected with -ldflags:
//
//	go build -ldflags "-X github.com/tphakala/audiograph/internal/buildinfo.version=v1.2.0"
package buildinfo

import "runtime/debug"

const unknown = "unknown"

var (
	version   string
	buildDate string
)

// Info is build metadata
type Info struct {
	Version   string
	BuildDate string
}

// Get returns the injected metadata. Without ldflags the version falls back
// to the module version recorded by the Go toolchain.
func Get() Info {
	return resolve(version, buildDate, debug.ReadBuildInfo)
}

func resolve(v, date string, read func() (*debug.BuildInfo, bool)) Info {
	info := Info{Version: v, BuildDate: date}
	if info.Version == "" {
		if bi, ok := read(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.BuildDate == "" {
		info.BuildDate = unknown
	}
	return info
}

// Release returns the release name reported to telemetry
func (i Info) Release() string { return "audiograph@" + i.Version }
