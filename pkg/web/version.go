package web

import (
	"runtime"
	"sync/atomic"
)

// BuildInfo identifies the running binary in /api/status
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
	Go      string `json:"go"`
}

var buildInfo atomic.Pointer[BuildInfo]

func init() {
	SetVersionInfo("dev", "unknown", "unknown")
}

// SetVersionInfo records the build identity reported by the API
func SetVersionInfo(version, commit, built string) {
	buildInfo.Store(&BuildInfo{
		Version: version,
		Commit:  commit,
		Built:   built,
		Go:      runtime.Version(),
	})
}

// Version returns the recorded build identity
func Version() BuildInfo {
	return *buildInfo.Load()
}
