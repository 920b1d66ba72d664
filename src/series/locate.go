// Package series turns discovered event files into a per-metric collection of
// run curves: locating files, deriving run names, filtering by step bound and
// smoothing value sequences.
package series

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZhBF/TB-Metrics-Visualizer/src/logging"
	"github.com/ZhBF/TB-Metrics-Visualizer/src/tbevents"
)

// FindEventFiles recursively scans the given directories for TensorBoard
// event files. Missing directories are warned about and skipped. Result order
// is directory-list order, then traversal order within each directory.
func FindEventFiles(dirs []string) []string {
	var files []string
	for _, dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			logging.Warnf("directory does not exist: %s", dir)
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logging.Warnf("scan %s: %v", path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && strings.HasPrefix(d.Name(), tbevents.FilePrefix) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			logging.Warnf("scan %s: %v", dir, err)
		}
	}
	return files
}
