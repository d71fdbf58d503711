package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover returns the absolute paths of scannable files under root, sorted.
// When scopes is non-empty only those root-relative directories are walked;
// missing scopes are ignored. Directories named in the policy's IgnoreDirs and
// any directory in exclude are skipped.
func Discover(root string, scopes []string, p Policy, exclude []string) ([]string, error) {
	p = p.withDefaults()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, err
	}

	ignored := make(map[string]bool, len(p.IgnoreDirs))
	for _, d := range p.IgnoreDirs {
		ignored[d] = true
	}
	excluded := make(map[string]bool, len(exclude))
	for _, d := range exclude {
		if abs, err := filepath.Abs(d); err == nil {
			excluded[abs] = true
		}
	}
	exts := make(map[string]bool, len(p.Extensions))
	for _, e := range p.Extensions {
		exts[strings.ToLower(e)] = true
	}

	starts := []string{absRoot}
	if len(scopes) > 0 {
		starts = starts[:0]
		for _, s := range scopes {
			starts = append(starts, filepath.Join(absRoot, s))
		}
	}

	seen := make(map[string]bool)
	var files []string
	for _, start := range starts {
		if _, err := os.Stat(start); err != nil {
			continue
		}
		err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != start {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != start && (ignored[d.Name()] || excluded[path]) {
					return filepath.SkipDir
				}
				return nil
			}
			if !exts[strings.ToLower(filepath.Ext(path))] || seen[path] {
				return nil
			}
			seen[path] = true
			files = append(files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(files)
	return files, nil
}

// relPath returns path relative to root with forward slashes.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
