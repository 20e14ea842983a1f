package speech

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// version is overridden at release time via -ldflags.
var version = "0.1.0-dev"

// Version returns the engine version.
func Version() string { return version }

// Versions returns a human-readable line describing the engine and the
// toolchain it was built with. It is a pure query over embedded build
// metadata and touches no process-wide state.
func Versions() string {
	rev := ""
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 8 {
				rev = " (" + s.Value[:8] + ")"
				break
			}
		}
	}
	return fmt.Sprintf("loqa-speech %s%s, %s", version, rev, runtime.Version())
}
