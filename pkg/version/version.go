// Package version exposes build metadata for the mipforge binary.
package version

import "runtime/debug"

// Build metadata. Overridden at link time with -ldflags "-X ...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const (
	develVersion   = "(devel)"
	revisionKey    = "vcs.revision"
	revisionTime   = "vcs.time"
	shortCommitLen = 12
)

// InitBinaryVersion fills unset metadata from the embedded module build info.
// Values injected through ldflags are left untouched.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	apply(info)
}

func apply(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != develVersion {
		Version = info.Main.Version
	}

	for _, s := range info.Settings {
		switch s.Key {
		case revisionKey:
			if Commit == "none" {
				Commit = s.Value
				if len(Commit) > shortCommitLen {
					Commit = Commit[:shortCommitLen]
				}
			}
		case revisionTime:
			if Date == "unknown" {
				Date = s.Value
			}
		}
	}
}
