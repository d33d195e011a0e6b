package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
)

// repoRelative converts command-line paths, relative to cwd, into slash
// separated paths relative to the repository root.
func repoRelative(root, cwd string, args []string) ([]string, error) {
	root = resolveSymlinks(root)
	cwd = resolveSymlinks(cwd)
	paths := make([]string, 0, len(args))
	for _, arg := range args {
		p := arg
		if !filepath.IsAbs(p) {
			p = filepath.Join(cwd, p)
		}
		p = filepath.Join(resolveSymlinks(filepath.Dir(p)), filepath.Base(p))
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", arg, err)
		}
		if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("%s: outside repository %s", arg, root)
		}
		paths = append(paths, filepath.ToSlash(rel))
	}
	return paths, nil
}

func resolveSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}
