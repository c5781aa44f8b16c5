// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package version

import (
	"runtime"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuildVars(t *testing.T, v, commit, built string) {
	t.Helper()
	oldVersion, oldCommit, oldBuilt := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = oldVersion, oldCommit, oldBuilt })
	Version, GitCommit, BuildTime = v, commit, built
}

func TestString(t *testing.T) {
	setBuildVars(t, "1.2.0", "abc1234", "2026-01-02T03:04:05Z")

	s := String()
	assert.Contains(t, s, "1.2.0")
	assert.Contains(t, s, "commit: abc1234")
	assert.Contains(t, s, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestResolve(t *testing.T) {
	vcs := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	tests := []struct {
		name    string
		version string
		commit  string
		bi      *debug.BuildInfo
		want    Info
	}{
		{
			name:    "no build info",
			version: "dev",
			commit:  "unknown",
			want:    Info{Version: "dev", GitCommit: "unknown", BuildTime: "unknown"},
		},
		{
			name:    "installed module version",
			version: "dev",
			commit:  "unknown",
			bi:      &debug.BuildInfo{Main: debug.Module{Path: Module, Version: "v1.4.0"}},
			want:    Info{Version: "v1.4.0", GitCommit: "unknown", BuildTime: "unknown"},
		},
		{
			name:    "devel build keeps dev",
			version: "dev",
			commit:  "unknown",
			bi:      &debug.BuildInfo{Main: debug.Module{Path: Module, Version: "(devel)"}, Settings: vcs},
			want:    Info{Version: "dev", GitCommit: "0123456789ab", BuildTime: "2026-03-04T05:06:07Z", Modified: true},
		},
		{
			name:    "other main module",
			version: "dev",
			commit:  "unknown",
			bi:      &debug.BuildInfo{Main: debug.Module{Path: "example.com/other", Version: "v9.0.0"}},
			want:    Info{Version: "dev", GitCommit: "unknown", BuildTime: "unknown"},
		},
		{
			name:    "ldflags win",
			version: "1.2.0",
			commit:  "abc1234",
			bi:      &debug.BuildInfo{Main: debug.Module{Path: Module, Version: "v1.4.0"}, Settings: vcs},
			want:    Info{Version: "1.2.0", GitCommit: "abc1234", BuildTime: "2026-03-04T05:06:07Z", Modified: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBuildVars(t, tt.version, tt.commit, "unknown")
			assert.Equal(t, tt.want, resolve(tt.bi))
		})
	}
}

func TestInfoString_Modified(t *testing.T) {
	s := Info{Version: "dev", GitCommit: "0123456789ab", BuildTime: "unknown", Modified: true}.String()
	assert.Contains(t, s, "commit: 0123456789ab-dirty")
}
