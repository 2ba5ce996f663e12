package version

import "runtime/debug"

// Build-time parameters set via -ldflags.
var Version = "devel"

// A user may install dgrid using `go install github.com/tujuhre12/dgrid@latest`.
// Without -ldflags the module version is read from the build info instead.
func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	mainVersion := info.Main.Version
	if mainVersion != "" && mainVersion != "(devel)" {
		Version = mainVersion
	}
}
