// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version reports which dbkey build is running.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Module is the import path of the dbkey module.
const Module = "github.com/aplane-algo/dbkey"

// Release builds set these with
// -ldflags "-X github.com/aplane-algo/dbkey/internal/version.Version=1.2.0".
// Values left at their defaults are filled from the embedded build info.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes a build.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
	Modified  bool
}

// Get returns the build description of the running binary.
func Get() Info {
	bi, _ := debug.ReadBuildInfo()
	return resolve(bi)
}

func resolve(bi *debug.BuildInfo) Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if bi == nil {
		return info
	}

	// go install github.com/aplane-algo/dbkey/cmd/dbkey@v1.2.0 stamps the module version.
	if info.Version == "dev" && bi.Main.Path == Module && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "unknown" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String returns the version line printed by the version command.
func String() string {
	return Get().String()
}

func (i Info) String() string {
	commit := i.GitCommit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s)",
		i.Version, commit, i.BuildTime, runtime.GOOS, runtime.GOARCH)
}
