package launcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// ResolveTarget locates the script file for a candidate name. A name that
// contains a path separator is returned unchanged: the caller asserted an
// explicit path. A bare name is searched for in each directory of searchPath
// (the value of the process's PATH-style variable) and the first existing
// regular file wins. No match is a normal, silent outcome: the original name
// is returned unchanged and the caller surfaces the failure.
func ResolveTarget(name, searchPath string) string {
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, os.PathSeparator) {
		return name
	}

	dirs := lo.Uniq(filepath.SplitList(searchPath))
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isRegularFile(candidate) {
			return candidate
		}
	}
	return name
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
