package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Version returns the module version or "dev" when unset.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	version := info.Main.Version
	if version == "" || version == "(devel)" {
		return "dev"
	}
	return version
}

// Tags returns the GOFLAGS build tags recorded at compile time.
func Tags() string {
	return setting("-tags")
}

// Revision returns the abbreviated VCS revision, with a "-dirty" suffix for
// builds from a modified tree.
func Revision() string {
	rev := setting("vcs.revision")
	if rev == "" {
		return ""
	}
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if setting("vcs.modified") == "true" {
		rev += "-dirty"
	}
	return rev
}

func setting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// String returns the version followed by the revision and tags when known.
func String() string {
	return format(Version(), Revision(), Tags())
}

func format(version, revision, tags string) string {
	var extra []string
	if revision != "" {
		extra = append(extra, "rev: "+revision)
	}
	if tags != "" {
		extra = append(extra, "tags: "+tags)
	}
	if len(extra) == 0 {
		return version
	}
	return fmt.Sprintf("%s (%s)", version, strings.Join(extra, ", "))
}
