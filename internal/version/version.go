// Package version tracks build metadata for the recorder binaries.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// Info describes build metadata for the application.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// String renders the metadata for --version output.
func (i Info) String() string {
	out := i.Version
	if i.Commit != "" {
		out += fmt.Sprintf(" (%s)", i.Commit)
	}
	if i.BuildTime != "" {
		out += " built " + i.BuildTime
	}
	return out
}

var (
	info      = Info{Version: "dev"}
	infoMutex sync.RWMutex
)

// Set updates the version metadata exposed by the application. Fields
// left empty are filled from the module build info when available.
func Set(v Info) {
	fillFromBuildInfo(&v)

	infoMutex.Lock()
	defer infoMutex.Unlock()

	if v.Version == "" {
		v.Version = "dev"
	}
	info = v
}

// Current returns the currently configured build metadata.
func Current() Info {
	infoMutex.RLock()
	defer infoMutex.RUnlock()
	return info
}

func fillFromBuildInfo(v *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		v.Version = bi.Main.Version
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			if v.Commit == "" {
				v.Commit = setting.Value
			}
		case "vcs.time":
			if v.BuildTime == "" {
				v.BuildTime = setting.Value
			}
		}
	}
}
