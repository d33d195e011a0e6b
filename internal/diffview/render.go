// Package diffview renders unified diffs for a terminal.
package diffview

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/thiagokokada/gitstage/internal/git/index"
)

const (
	ansiReset = "\x1b[0m"
	ansiBold  = "\x1b[1m"
)

type Options struct {
	Theme ThemePreference
	// Color disables all escape sequences when false.
	Color bool
	// Syntax highlights code on added, removed and context lines.
	Syntax bool
}

// Render writes diff to w. Without colour the text is written unchanged.
func Render(w io.Writer, diff string, opts Options) error {
	if !opts.Color {
		_, err := io.WriteString(w, diff)
		return err
	}
	r := newRenderer(paletteForPreference(opts.Theme), opts.Syntax)
	bw := bufio.NewWriter(w)
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		if i == len(lines)-1 && line == "" {
			break
		}
		bw.WriteString(r.line(line))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

type renderer struct {
	palette colorPalette
	style   *chroma.Style
	lexer   chroma.Lexer
}

func newRenderer(p colorPalette, syntax bool) *renderer {
	r := &renderer{palette: p}
	if syntax {
		r.style = styleForPalette(p)
	}
	return r
}

func (r *renderer) line(line string) string {
	if path, ok := index.DiffHeaderPath(line); ok {
		r.lexer = nil
		if path != "" && r.style != nil {
			r.lexer = lexerForPath(path)
		}
		return ansiBold + bg(r.palette.DiffHeader) + line + ansiReset
	}
	switch {
	case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
		return ansiBold + line + ansiReset
	case strings.HasPrefix(line, "@@"):
		return fg(r.palette.HunkHeader) + line + ansiReset
	}
	code, ok := diffLineCode(line)
	if !ok {
		return line
	}
	background := ""
	switch line[0] {
	case '+':
		background = bg(r.palette.DiffAdd)
	case '-':
		background = bg(r.palette.DiffDel)
	}
	var b strings.Builder
	b.WriteString(background)
	b.WriteByte(line[0])
	r.highlight(&b, code, background)
	b.WriteString(ansiReset)
	return b.String()
}

// highlight writes code with token colours; background is restored after
// every token reset.
func (r *renderer) highlight(b *strings.Builder, code, background string) {
	if r.lexer == nil || r.style == nil || code == "" {
		b.WriteString(code)
		return
	}
	iterator, err := r.lexer.Tokenise(nil, code)
	if err != nil {
		b.WriteString(code)
		return
	}
	for _, token := range iterator.Tokens() {
		if token.Value == "" {
			continue
		}
		color := colorFromEntry(r.style.Get(token.Type))
		if color == "" {
			b.WriteString(token.Value)
			continue
		}
		b.WriteString(fg(color))
		b.WriteString(token.Value)
		b.WriteString(ansiReset)
		b.WriteString(background)
	}
}

// diffLineCode returns the code part of an added, removed or context line.
func diffLineCode(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	switch line[0] {
	case '+', '-', ' ':
		if strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "--- ") {
			return "", false
		}
		return line[1:], true
	default:
		return "", false
	}
}

func styleForPalette(p colorPalette) *chroma.Style {
	if p.isDark() {
		if st := styles.Get("github-dark"); st != nil {
			return st
		}
	} else {
		if st := styles.Get("github"); st != nil {
			return st
		}
	}
	return styles.Fallback
}

func colorFromEntry(entry chroma.StyleEntry) string {
	if entry.Colour.IsSet() {
		col := entry.Colour.String()
		col = strings.TrimPrefix(strings.ToLower(col), "#")
		return "#" + col
	}
	return ""
}

func lexerForPath(path string) chroma.Lexer {
	if path == "" {
		return nil
	}
	lexer := lexers.Match(path)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

func fg(hex string) string { return sgr(38, hex) }
func bg(hex string) string { return sgr(48, hex) }

// sgr builds a 24-bit colour escape; malformed colours yield "".
func sgr(code int, hex string) string {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return ""
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\x1b[%d;2;%d;%d;%dm", code, v>>16&0xff, v>>8&0xff, v&0xff)
}
