// Package version identifies the build. Set Version when linking:
//
//	go build -ldflags "-X github.com/Xenakios/AudioPluginHost-II-sub001/version.Version=$(git describe --dirty)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var Version string

// Hash is the short VCS revision the binary was built from, with a -dirty
// suffix for modified trees, or "" when unknown.
var Hash = func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	return revision(info.Settings)
}()

var VersionOrHash = func() string {
	if Version != "" {
		return Version
	}
	return Hash
}()

func revision(settings []debug.BuildSetting) string {
	var rev string
	modified := false
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value[:min(7, len(s.Value))]
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	if rev != "" && modified {
		return rev + "-dirty"
	}
	return rev
}

// Describe returns a one-line description of the binary called name.
func Describe(name string) string {
	v := VersionOrHash
	if v == "" {
		v = "(devel)"
	}
	return fmt.Sprintf("%s %s (%s, %s/%s)", name, v, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
