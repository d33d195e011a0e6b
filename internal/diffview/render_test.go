package diffview

import (
	"errors"
	"strings"
	"testing"
)

const sampleDiff = "diff --git a/main.go b/main.go\n" +
	"--- a/main.go\n" +
	"+++ b/main.go\n" +
	"@@ -1,2 +1,2 @@\n" +
	" package main\n" +
	"-var x = 1\n" +
	"+var x = 2\n"

func TestRenderWithoutColorIsVerbatim(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := Render(&b, sampleDiff, Options{Theme: ThemeLight, Syntax: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b.String() != sampleDiff {
		t.Fatalf("got %q, want %q", b.String(), sampleDiff)
	}
}

func TestRenderColorsLines(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	if err := Render(&b, sampleDiff, Options{Theme: ThemeDark, Color: true}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	if len(lines) != 7 {
		t.Fatalf("want 7 lines, got %d: %q", len(lines), lines)
	}
	wantPrefix := []string{
		ansiBold + bg(darkPalette.DiffHeader),
		ansiBold,
		ansiBold,
		fg(darkPalette.HunkHeader),
		" ",
		bg(darkPalette.DiffDel),
		bg(darkPalette.DiffAdd),
	}
	for i, prefix := range wantPrefix {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Fatalf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
	if !strings.HasSuffix(lines[6], "+var x = 2"+ansiReset) {
		t.Fatalf("unexpected added line %q", lines[6])
	}
}

func TestRenderSyntaxHighlightsCode(t *testing.T) {
	t.Parallel()

	var plain, highlighted strings.Builder
	if err := Render(&plain, sampleDiff, Options{Theme: ThemeLight, Color: true}); err != nil {
		t.Fatal(err)
	}
	if err := Render(&highlighted, sampleDiff, Options{Theme: ThemeLight, Color: true, Syntax: true}); err != nil {
		t.Fatal(err)
	}
	if strings.Count(highlighted.String(), "\x1b[38;2;") <= strings.Count(plain.String(), "\x1b[38;2;") {
		t.Fatalf("expected token colours in %q", highlighted.String())
	}
}

func TestDiffLineCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line   string
		want   string
		wantOK bool
	}{
		{line: "", wantOK: false},
		{line: "+added", want: "added", wantOK: true},
		{line: "-removed", want: "removed", wantOK: true},
		{line: " ctx", want: "ctx", wantOK: true},
		{line: "+++ b/file", wantOK: false},
		{line: "--- a/file", wantOK: false},
		{line: `\ No newline at end of file`, wantOK: false},
		{line: "@@ -1 +1 @@", wantOK: false},
	}
	for _, tt := range tests {
		got, ok := diffLineCode(tt.line)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("diffLineCode(%q) = %q, %v; want %q, %v", tt.line, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSGR(t *testing.T) {
	t.Parallel()

	if got := fg("#0a0B0c"); got != "\x1b[38;2;10;11;12m" {
		t.Fatalf("fg = %q", got)
	}
	if got := bg("nope"); got != "" {
		t.Fatalf("bg of malformed colour = %q", got)
	}
}

func TestLexerForPath(t *testing.T) {
	t.Parallel()

	if lexerForPath("") != nil {
		t.Fatal("expected nil lexer for empty path")
	}
	if lexerForPath("main.go") == nil {
		t.Fatal("expected lexer for Go file")
	}
	if lexerForPath("unknown.zzz") == nil {
		t.Fatal("expected fallback lexer")
	}
}

func TestThemePreferenceFromString(t *testing.T) {
	t.Parallel()

	tests := map[string]ThemePreference{
		"dark":   ThemeDark,
		" Light": ThemeLight,
		"auto":   ThemeAuto,
		"":       ThemeAuto,
		"purple": ThemeAuto,
	}
	for raw, want := range tests {
		if got := ThemePreferenceFromString(raw); got != want {
			t.Fatalf("ThemePreferenceFromString(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestPaletteForPreference(t *testing.T) {
	orig := detectDarkMode
	t.Cleanup(func() { detectDarkMode = orig })

	detectDarkMode = func() (bool, error) { return true, nil }
	if p := paletteForPreference(ThemeAuto); !p.isDark() {
		t.Fatal("auto with dark system should pick dark palette")
	}
	detectDarkMode = func() (bool, error) { return false, errors.New("no desktop") }
	if p := paletteForPreference(ThemeAuto); p.isDark() {
		t.Fatal("detection failure should fall back to light palette")
	}
	if p := paletteForPreference(ThemeDark); !p.isDark() {
		t.Fatal("explicit dark preference ignored")
	}
	if p := paletteForPreference(ThemeLight); p.isDark() {
		t.Fatal("explicit light preference ignored")
	}
}
