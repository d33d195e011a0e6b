package backend

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Minimum supported git version for the CLI backend. Keep this aligned with the
// plumbing we drive (e.g. "git apply --unidiff-zero" from stdin and
// "git update-index --index-info").
var minGitVersion = gitVersion{major: 2, minor: 23, patch: 0}

type gitVersion struct {
	major int
	minor int
	patch int
}

func MinGitVersion() string {
	return minGitVersion.String()
}

func (v gitVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.major, v.minor, v.patch)
}

func (v gitVersion) less(other gitVersion) bool {
	if v.major != other.major {
		return v.major < other.major
	}
	if v.minor != other.minor {
		return v.minor < other.minor
	}
	return v.patch < other.patch
}

func parseGitVersionOutput(out string) (gitVersion, bool) {
	s := strings.TrimSpace(out)
	if s == "" {
		return gitVersion{}, false
	}
	// Common formats:
	// - "git version 2.44.0"
	// - "git version 2.39.3 (Apple Git-146)"
	// - "git version 2.39.3.windows.1"
	if idx := strings.Index(s, "git version"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("git version"):])
	}
	// Find first digit to tolerate vendor suffixes/prefixes.
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return gitVersion{}, false
	}
	s = s[start:]
	// Keep only the leading numeric/dot portion (e.g. "2.39.3" from "2.39.3.windows.1").
	end := 0
	for end < len(s) {
		c := s[end]
		if (c >= '0' && c <= '9') || c == '.' {
			end++
			continue
		}
		break
	}
	s = strings.Trim(s[:end], ".")
	if s == "" {
		return gitVersion{}, false
	}

	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return gitVersion{}, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return gitVersion{}, false
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return gitVersion{}, false
	}
	patch := 0
	if len(parts) >= 3 {
		if p, err := strconv.Atoi(parts[2]); err == nil {
			patch = p
		}
	}
	return gitVersion{major: major, minor: minor, patch: patch}, true
}

type gitVersionInfo struct {
	out    string
	parsed gitVersion
	ok     bool
	err    error
}

func validateGitVersionOutput(out string) error {
	got, ok := parseGitVersionOutput(out)
	if !ok {
		return fmt.Errorf("unable to parse git version output: %q", strings.TrimSpace(out))
	}
	if got.less(minGitVersion) {
		return fmt.Errorf("git %s is too old; gitstage requires git >= %s", got, minGitVersion)
	}
	return nil
}

const versionProbeTimeout = 10 * time.Second

var (
	gitVersionMu    sync.Mutex
	gitVersionCache = map[string]gitVersionInfo{}
)

// gitVersionInfoCached probes "<bin> --version" once per binary.
func gitVersionInfoCached(bin string) gitVersionInfo {
	gitVersionMu.Lock()
	defer gitVersionMu.Unlock()
	if info, ok := gitVersionCache[bin]; ok {
		return info
	}
	var info gitVersionInfo
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, "--version")
	prepareCommand(cmd)
	outBytes, err := cmd.CombinedOutput()
	out := strings.TrimSpace(string(outBytes))
	info.out = out
	switch {
	case err != nil && out != "":
		info.err = NewError(KindBackendUnavailable, bin+" --version", out, err)
	case err != nil:
		info.err = NewError(KindBackendUnavailable, bin+" --version", "", err)
	default:
		info.parsed, info.ok = parseGitVersionOutput(out)
		if !info.ok {
			info.err = NewError(KindBackendUnavailable, bin+" --version",
				fmt.Sprintf("unable to parse git version output: %q", out), nil)
		}
	}
	gitVersionCache[bin] = info
	return info
}

// GitVersion returns the raw "--version" output of bin.
func GitVersion(bin string) (string, error) {
	if bin == "" {
		bin = defaultGitBinary
	}
	info := gitVersionInfoCached(bin)
	return info.out, info.err
}

func ensureMinGitVersion(bin string) error {
	info := gitVersionInfoCached(bin)
	if info.err != nil {
		return info.err
	}
	if err := validateGitVersionOutput(info.out); err != nil {
		return NewError(KindBackendUnavailable, bin+" --version", err.Error(), nil)
	}
	return nil
}
