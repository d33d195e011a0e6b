package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseGitVersionOutput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want gitVersion
		ok   bool
	}{
		{name: "empty", in: "", ok: false},
		{name: "plain", in: "git version 2.44.0\n", want: gitVersion{major: 2, minor: 44, patch: 0}, ok: true},
		{name: "apple_git", in: "git version 2.39.3 (Apple Git-146)\n", want: gitVersion{major: 2, minor: 39, patch: 3}, ok: true},
		{name: "windows_suffix", in: "git version 2.39.3.windows.1\n", want: gitVersion{major: 2, minor: 39, patch: 3}, ok: true},
		{name: "no_prefix", in: "2.42.1\n", want: gitVersion{major: 2, minor: 42, patch: 1}, ok: true},
		{name: "no_patch", in: "git version 2.42\n", want: gitVersion{major: 2, minor: 42, patch: 0}, ok: true},
		{name: "invalid", in: "git version not-a-version\n", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := parseGitVersionOutput(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v (got=%+v)", ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestValidateGitVersionOutput(t *testing.T) {
	t.Parallel()

	old := minGitVersion
	t.Cleanup(func() { minGitVersion = old })
	minGitVersion = gitVersion{major: 2, minor: 23, patch: 0}

	if err := validateGitVersionOutput("git version 2.23.0\n"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := validateGitVersionOutput("git version 2.22.9\n"); err == nil {
		t.Fatal("expected error for old git")
	}
}

func fakeGitBinary(t *testing.T, versionLine string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	bin := filepath.Join(t.TempDir(), "git")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho '"+versionLine+"'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestGitVersionCachedPerBinary(t *testing.T) {
	bin := fakeGitBinary(t, "git version 2.40.1")

	out, err := GitVersion(bin)
	if err != nil || out != "git version 2.40.1" {
		t.Fatalf("GitVersion = %q, %v", out, err)
	}
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'git version 1.0.0'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if out, _ := GitVersion(bin); out != "git version 2.40.1" {
		t.Fatalf("second probe was not cached: %q", out)
	}
	if err := ensureMinGitVersion(bin); err != nil {
		t.Fatalf("ensureMinGitVersion: %v", err)
	}

	other := fakeGitBinary(t, "git version 2.41.0")
	if out, _ := GitVersion(other); out != "git version 2.41.0" {
		t.Fatalf("GitVersion(other) = %q", out)
	}
}

func TestEnsureMinGitVersionUnavailable(t *testing.T) {
	tests := []struct {
		name string
		bin  func(t *testing.T) string
	}{
		{name: "too_old", bin: func(t *testing.T) string { return fakeGitBinary(t, "git version 2.1.4") }},
		{name: "unparsable", bin: func(t *testing.T) string { return fakeGitBinary(t, "not git at all") }},
		{name: "missing", bin: func(t *testing.T) string { return filepath.Join(t.TempDir(), "no-such-git") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ensureMinGitVersion(tt.bin(t))
			if KindOf(err) != KindBackendUnavailable {
				t.Fatalf("expected backend unavailable, got %v", err)
			}
		})
	}
}
