package daemon

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// normalizeRoots cleans and deduplicates scan roots and drops any that
// do not name a directory. The result is ordered deepest first, so a
// nested root is scanned before its ancestor and the ancestor's walk
// finds warm cache entries for it. The returned map marks outermost
// roots, the ones contained by no other root; pass totals sum only
// those, which keeps overlapping roots from counting twice.
func normalizeRoots(roots []string) ([]string, map[string]bool) {
	seen := make(map[string]bool)
	var cleaned []string
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true
		cleaned = append(cleaned, abs)
	}

	sort.Slice(cleaned, func(i, j int) bool {
		di, dj := pathDepth(cleaned[i]), pathDepth(cleaned[j])
		if di != dj {
			return di > dj
		}
		return cleaned[i] < cleaned[j]
	})

	outermost := make(map[string]bool, len(cleaned))
	for _, root := range cleaned {
		outer := true
		for _, other := range cleaned {
			if containsPath(other, root) {
				outer = false
				break
			}
		}
		outermost[root] = outer
	}
	return cleaned, outermost
}

// containsPath reports whether ancestor strictly contains path.
func containsPath(ancestor, path string) bool {
	if ancestor == path {
		return false
	}
	if ancestor == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, ancestor+string(filepath.Separator))
}

// pathDepth counts path components below the filesystem root.
func pathDepth(path string) int {
	if path == string(filepath.Separator) {
		return 0
	}
	return strings.Count(path, string(filepath.Separator))
}
