package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ttscorpus/pkg/corpus"
)

// labelSet is one label directory and its matching source files, sorted by name.
type labelSet struct {
	name  string
	files []string
}

// discover lists the label directories of root. Hidden directories are skipped.
func discover(root string, exts []string) ([]labelSet, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read source root: %w", err)
	}

	var sets []labelSet
	for _, d := range dirs {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		files, err := listSources(filepath.Join(root, d.Name()), exts)
		if err != nil {
			return nil, err
		}
		sets = append(sets, labelSet{name: d.Name(), files: files})
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].name < sets[j].name })
	return sets, nil
}

func listSources(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read label dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		t := e.Type()
		if !(t.IsRegular() || t&os.ModeSymlink != 0) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		for _, ext := range exts {
			if corpus.HasExt(e.Name(), ext) {
				files = append(files, e.Name())
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// duplicates returns the files whose stem was already claimed by an earlier
// file of the same label, e.g. a01.mp3 after a01.flac.
func duplicates(files []string) map[string]bool {
	seen := make(map[string]bool, len(files))
	dup := make(map[string]bool)
	for _, f := range files {
		stem := corpus.Stem(f)
		if seen[stem] {
			dup[f] = true
			continue
		}
		seen[stem] = true
	}
	return dup
}

// normalizeExts lower-cases extensions and adds the leading dot.
func normalizeExts(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
