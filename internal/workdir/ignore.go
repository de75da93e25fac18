package workdir

import (
	"os"
	"path"
	"strings"

	"vcs/internal/content"
	"vcs/shared/utils"
)

// IgnoreFile is the per-tree list of ignored paths, one per line.
const IgnoreFile = ".ignore"

// Ignore matches logical paths against the entries of an ignore file. An
// entry ignores the path itself, everything below it when it names a
// directory, and any path or base name it matches as a glob.
type Ignore struct {
	always   []string
	patterns []string
}

func loadIgnore(file string, always ...string) (*Ignore, error) {
	ig := &Ignore{always: always}

	lines, err := utils.ReadLines(file)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ig.patterns = append(ig.patterns, content.CleanPath(strings.TrimSuffix(line, "/")))
	}
	return ig, nil
}

// Match reports whether logicalPath is ignored.
func (ig *Ignore) Match(logicalPath string) bool {
	p := content.CleanPath(logicalPath)
	for _, a := range ig.always {
		if matchEntry(a, p) {
			return true
		}
	}
	for _, pat := range ig.patterns {
		if matchEntry(pat, p) {
			return true
		}
	}
	return false
}

// Patterns returns the entries read from the ignore file.
func (ig *Ignore) Patterns() []string {
	return append([]string(nil), ig.patterns...)
}

func matchEntry(entry, p string) bool {
	if p == entry || strings.HasPrefix(p, entry+"/") {
		return true
	}
	if ok, _ := path.Match(entry, p); ok {
		return true
	}
	if !strings.Contains(entry, "/") {
		// bare globs apply to every path component
		for _, part := range strings.Split(p, "/") {
			if ok, _ := path.Match(entry, part); ok {
				return true
			}
		}
	}
	return false
}
