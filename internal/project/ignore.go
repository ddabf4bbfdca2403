package project

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

type rule struct {
	negated  bool
	dirOnly  bool
	anchored bool
	glob     string
}

// Matcher holds gitignore-style rules. Later rules override earlier ones.
type Matcher struct {
	rules []rule
}

// LoadIgnore reads rules from path. A missing file yields an empty matcher.
func LoadIgnore(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Matcher{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ignore file: %w", err)
	}
	return ParseIgnore(strings.Split(string(data), "\n")), nil
}

func ParseIgnore(lines []string) *Matcher {
	m := &Matcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var r rule
		if strings.HasPrefix(line, "!") {
			r.negated = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			r.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		if strings.HasPrefix(line, "/") {
			r.anchored = true
			line = strings.TrimPrefix(line, "/")
		}
		if line == "" {
			continue
		}
		r.glob = line
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether rel, a slash-separated path relative to the project
// root, is ignored.
func (m *Matcher) Match(rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.matches(rel) {
			ignored = !r.negated
		}
	}
	return ignored
}

// Rules containing a slash, or starting with one, match the whole path.
// Other rules match any single path component.
func (r rule) matches(rel string) bool {
	if r.anchored || strings.Contains(r.glob, "/") {
		ok, _ := path.Match(r.glob, rel)
		return ok
	}
	for _, part := range strings.Split(rel, "/") {
		if ok, _ := path.Match(r.glob, part); ok {
			return true
		}
	}
	return false
}
