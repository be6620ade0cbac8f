package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestVersionString(t *testing.T) {
	v := Version{Major: "1", Minor: "2", Patch: "3", Metadata: "rc1", Build: "abcdef"}
	if got := v.String(); got != "Version: 1.2.3-rc1\nBuild: abcdef" {
		t.Fatalf("wrong version string %q", got)
	}
	if !strings.HasPrefix(DwarfdbVersion.String(), "Version: 0.3.0\nBuild: ") {
		t.Fatalf("wrong version string %q", DwarfdbVersion.String())
	}
}

func fakeBuildInfo(t *testing.T, info *debug.BuildInfo) {
	old := readBuildInfo
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() { readBuildInfo = old })
}

func TestFixBuild(t *testing.T) {
	fakeBuildInfo(t, &debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123abc"},
		{Key: "vcs.modified", Value: "true"},
	}})
	v := Version{Major: "0", Minor: "1", Patch: "0", Build: "$Id$"}
	if got := v.String(); got != "Version: 0.1.0\nBuild: 0123abc-dirty" {
		t.Fatalf("wrong version string %q", got)
	}

	fakeBuildInfo(t, nil)
	if got := v.String(); got != "Version: 0.1.0\nBuild: $Id$" {
		t.Fatalf("wrong version string %q", got)
	}
}

func TestBuildInfo(t *testing.T) {
	fakeBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Path: "github.com/go-delve/dwarfdb", Version: "(devel)"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.1.3"},
			{Path: "github.com/go-delve/liner", Version: "v1.2.2", Replace: &debug.Module{Path: "../liner"}},
		},
	})
	lines := strings.Split(BuildInfo(), "\n")
	if len(lines) != 4 || lines[0] != runtime.Version() {
		t.Fatalf("wrong build info %q", lines)
	}
	if !strings.HasPrefix(lines[1], "mod github.com/go-delve/dwarfdb") {
		t.Errorf("wrong main module line %q", lines[1])
	}
	if !strings.Contains(lines[3], "=> ../liner") {
		t.Errorf("replacement not shown in %q", lines[3])
	}

	fakeBuildInfo(t, nil)
	if !strings.HasPrefix(BuildInfo(), runtime.Version()) {
		t.Fatalf("build info does not start with the Go version: %q", BuildInfo())
	}
}
