package index

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/thiagokokada/gitstage/internal/git/backend"
)

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Hunk is one "@@" block of a unified diff.
type Hunk struct {
	Header   string
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	// Lines holds the body with their ' ', '+', '-' or '\' prefixes.
	Lines []string
}

// HasContext reports whether the hunk carries any context line.
func (h Hunk) HasContext() bool {
	for _, l := range h.Lines {
		if strings.HasPrefix(l, " ") {
			return true
		}
	}
	return false
}

// Added and Removed count the changed lines of the hunk.
func (h Hunk) Added() int   { return h.count('+') }
func (h Hunk) Removed() int { return h.count('-') }

func (h Hunk) count(prefix byte) int {
	n := 0
	for _, l := range h.Lines {
		if len(l) > 0 && l[0] == prefix {
			n++
		}
	}
	return n
}

// FileDiff is the unified diff of a single file split into its header and hunks.
type FileDiff struct {
	Path   string
	Header []string
	Hunks  []Hunk
	Binary bool
}

// ParseDiff splits the diff of one file into header and hunks.
func ParseDiff(text string) (FileDiff, error) {
	var d FileDiff
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return d, backend.NewError(backend.KindValidation, "parse diff", "empty diff", nil)
	}
	lines := strings.Split(text, "\n")
	i := 0
	for ; i < len(lines) && !strings.HasPrefix(lines[i], "@@"); i++ {
		line := lines[i]
		switch {
		case strings.HasPrefix(line, "diff --git "):
			if d.Path != "" {
				return d, backend.NewError(backend.KindValidation, "parse diff", "diff spans more than one file", nil)
			}
			d.Path = parseGitDiffPath(line)
		case strings.HasPrefix(line, "+++ ") && d.Path == "":
			d.Path = normalizeDiffPath(firstToken(line[len("+++ "):]))
		case strings.HasPrefix(line, "Binary files "), line == "GIT binary patch":
			d.Binary = true
		}
		d.Header = append(d.Header, line)
	}

	for i < len(lines) {
		h, next, err := parseHunk(lines, i)
		if err != nil {
			return d, err
		}
		d.Hunks = append(d.Hunks, h)
		i = next
	}
	if len(d.Hunks) == 0 && !d.Binary && d.Path == "" {
		return d, backend.NewError(backend.KindValidation, "parse diff", "no file header or hunk found", nil)
	}
	return d, nil
}

// parseHunk parses the hunk starting at lines[start] and returns the index of
// the line after it. Line counts in the header must match the body.
func parseHunk(lines []string, start int) (Hunk, int, error) {
	header := lines[start]
	m := hunkHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return Hunk{}, 0, backend.NewError(backend.KindValidation, "parse diff", fmt.Sprintf("malformed hunk header %q", header), nil)
	}
	h := Hunk{
		Header:   header,
		OldStart: atoiDefault(m[1], 0),
		OldLines: atoiDefault(m[2], 1),
		NewStart: atoiDefault(m[3], 0),
		NewLines: atoiDefault(m[4], 1),
	}
	oldSeen, newSeen := 0, 0
	i := start + 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if oldSeen >= h.OldLines && newSeen >= h.NewLines {
			if strings.HasPrefix(line, `\`) {
				h.Lines = append(h.Lines, line)
				continue
			}
			break
		}
		switch {
		case line == "":
			// Some tools strip the space of empty context lines.
			line = " "
			oldSeen++
			newSeen++
		case line[0] == ' ':
			oldSeen++
			newSeen++
		case line[0] == '-':
			oldSeen++
		case line[0] == '+':
			newSeen++
		case line[0] == '\\':
		default:
			return Hunk{}, 0, backend.NewError(backend.KindValidation, "parse diff", fmt.Sprintf("unexpected line %q in hunk %q", line, header), nil)
		}
		h.Lines = append(h.Lines, line)
	}
	if oldSeen != h.OldLines || newSeen != h.NewLines {
		return Hunk{}, 0, backend.NewError(backend.KindValidation, "parse diff",
			fmt.Sprintf("hunk %q has %d old and %d new lines", header, oldSeen, newSeen), nil)
	}
	if i < len(lines) && !strings.HasPrefix(lines[i], "@@") {
		return Hunk{}, 0, backend.NewError(backend.KindValidation, "parse diff", fmt.Sprintf("unexpected line %q after hunk %q", lines[i], header), nil)
	}
	return h, i, nil
}

// HunkPatch builds a patch applying only hunk i: the file header followed by
// that hunk.
func (d FileDiff) HunkPatch(i int) (string, error) {
	if d.Binary {
		return "", backend.NewError(backend.KindValidation, "hunk patch", "binary files have no hunks", nil)
	}
	if i < 0 || i >= len(d.Hunks) {
		return "", backend.NewError(backend.KindValidation, "hunk patch", fmt.Sprintf("hunk %d out of range (%d hunks)", i, len(d.Hunks)), nil)
	}
	var b strings.Builder
	for _, l := range d.Header {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	h := d.Hunks[i]
	b.WriteString(h.Header)
	b.WriteByte('\n')
	for _, l := range h.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func firstToken(s string) string {
	tokens := diffLineTokens(s)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0]
}

// DiffHeaderPath reports whether line is a "diff --git" header and, if so,
// the path it introduces.
func DiffHeaderPath(line string) (string, bool) {
	if !strings.HasPrefix(line, "diff --git ") {
		return "", false
	}
	return parseGitDiffPath(line), true
}

func parseGitDiffPath(line string) string {
	const prefix = "diff --git "
	if !strings.HasPrefix(line, prefix) {
		return ""
	}
	tokens := diffLineTokens(strings.TrimSpace(line[len(prefix):]))
	if len(tokens) < 2 {
		return ""
	}
	return normalizeDiffPath(tokens[1])
}

// diffLineTokens splits a diff header line into paths, unquoting the C-style
// quoted form git uses for unusual names.
func diffLineTokens(s string) []string {
	var tokens []string
	for {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		if s[0] == '"' {
			i := 1
			for i < len(s) && s[i] != '"' {
				if s[i] == '\\' {
					i++
				}
				i++
			}
			end := min(i+1, len(s))
			tokens = append(tokens, unquoteDiffPath(s[:end]))
			s = s[end:]
			continue
		}
		j := 0
		for j < len(s) && s[j] != ' ' && s[j] != '\t' {
			j++
		}
		tokens = append(tokens, s[:j])
		s = s[j:]
	}
	return tokens
}

// unquoteDiffPath decodes a C-style quoted path, including the octal escapes
// git emits for non-ASCII bytes. Malformed input keeps its raw content.
func unquoteDiffPath(quoted string) string {
	if path, err := strconv.Unquote(quoted); err == nil {
		return path
	}
	return strings.Trim(quoted, `"`)
}

func normalizeDiffPath(token string) string {
	if token == "/dev/null" {
		return ""
	}
	token = strings.TrimPrefix(token, "a/")
	token = strings.TrimPrefix(token, "b/")
	return token
}
