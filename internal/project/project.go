// Package project finds the GDScript files of a Godot project.
package project

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	Extension = ".gd"
	// A directory holding this file is hidden from the Godot editor.
	gdignoreFile  = ".gdignore"
	gitignoreFile = ".gitignore"
)

// Expand replaces every directory in targets with the scripts beneath it.
// Files are kept as given, duplicates are dropped and order is preserved.
func Expand(targets []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, target := range targets {
		info, err := os.Stat(target)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(target)
			continue
		}
		scripts, err := Discover(target)
		if err != nil {
			return nil, err
		}
		for _, script := range scripts {
			add(script)
		}
	}
	return out, nil
}

// Discover walks root and returns its .gd files, sorted. Hidden directories,
// directories marked with .gdignore and paths matched by the root .gitignore
// are skipped.
func Discover(root string) ([]string, error) {
	root = filepath.Clean(root)
	matcher, err := LoadIgnore(filepath.Join(root, gitignoreFile))
	if err != nil {
		return nil, err
	}

	var scripts []string
	err = filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if skipDir(p, entry.Name()) || matcher.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(p), Extension) && !matcher.Match(rel, false) {
			scripts = append(scripts, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(scripts)
	return scripts, nil
}

func skipDir(p, name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, err := os.Stat(filepath.Join(p, gdignoreFile))
	return err == nil
}
