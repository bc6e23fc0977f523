package version

import (
	"fmt"
	"runtime/debug"
)

// These variables are set at build time using -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info represents version information.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// Get returns the build's version information. The commit falls back
// to the VCS revision embedded by the Go toolchain when -ldflags did
// not set one.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
	}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = buildInfo.GoVersion
		if info.GitCommit == "" {
			for _, setting := range buildInfo.Settings {
				if setting.Key == "vcs.revision" {
					info.GitCommit = setting.Value
					break
				}
			}
		}
	}
	return info
}

// String returns a one-line human-readable version.
func String() string {
	info := Get()
	s := info.Version
	if info.GitCommit != "" {
		commit := info.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		s = fmt.Sprintf("%s (%s)", s, commit)
	}
	if info.BuildTime != "" {
		s = fmt.Sprintf("%s built %s", s, info.BuildTime)
	}
	return s
}
