package series

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZhBF/TB-Metrics-Visualizer/src/tbevents"
)

// NoStepLimit disables the max-step bound in Merge.
const NoStepLimit int64 = -1

// Record holds one run's observations for one metric. The three slices are
// parallel and never empty once stored in a Collection.
type Record struct {
	Steps     []int64
	Values    []float64
	WallTimes []float64
	RunName   string
	FilePath  string
}

type metricEntry struct {
	tag  string
	runs []Record
}

// Collection maps metric names to the per-run records observed for them.
// Insertion order (file-scan order) is preserved; the collection is built by
// Merge and read-only afterwards.
type Collection struct {
	index   map[string]int
	entries []metricEntry
}

// NewCollection returns an empty collection.
func NewCollection() *Collection {
	return &Collection{index: map[string]int{}}
}

// Add appends a record under tag, creating the entry on first use. Merge is
// the usual caller; tests build small collections directly.
func (c *Collection) Add(tag string, rec Record) {
	i, ok := c.index[tag]
	if !ok {
		i = len(c.entries)
		c.index[tag] = i
		c.entries = append(c.entries, metricEntry{tag: tag})
	}
	c.entries[i].runs = append(c.entries[i].runs, rec)
}

// Len reports the number of distinct metric names.
func (c *Collection) Len() int { return len(c.entries) }

// Tags returns metric names in insertion order.
func (c *Collection) Tags() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.tag
	}
	return out
}

// SortedTags returns metric names sorted lexicographically (subplot order).
func (c *Collection) SortedTags() []string {
	out := c.Tags()
	sort.Strings(out)
	return out
}

// Runs returns the records for a metric in file-scan order, or nil.
func (c *Collection) Runs(tag string) []Record {
	if i, ok := c.index[tag]; ok {
		return c.entries[i].runs
	}
	return nil
}

// FileResult is the per-file outcome of a Merge pass. Err is nil on success;
// Records counts the series records the file contributed.
type FileResult struct {
	Path    string
	Records int
	Err     error
}

// RunName derives the display identifier for an event file: its parent
// directory relative to the first root it falls under, else the absolute
// parent path. Files sharing a parent under the same root share a name.
func RunName(file string, roots []string) string {
	parent, err := filepath.Abs(filepath.Dir(file))
	if err != nil {
		return filepath.Dir(file)
	}
	sep := string(filepath.Separator)
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, parent)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+sep) {
			continue
		}
		return rel
	}
	return parent
}

// Merge loads every file and accumulates per-tag records into a Collection.
// maxStep >= 0 drops observations with a larger step; a tag left empty by the
// bound is skipped for that file. Failures are confined to their file and
// reported in the returned FileResults, matching slot-for-slot with files.
func Merge(files []string, roots []string, maxStep int64) (*Collection, []FileResult) {
	coll := NewCollection()
	results := make([]FileResult, 0, len(files))
	for _, file := range files {
		res := FileResult{Path: file}
		ef := tbevents.Open(file)
		if err := ef.Load(); err != nil {
			res.Err = fmt.Errorf("load %s: %w", file, err)
			results = append(results, res)
			continue
		}
		name := RunName(file, roots)
		for _, tag := range ef.Tags() {
			rec := buildRecord(ef.Scalars(tag), name, file, maxStep)
			if len(rec.Steps) == 0 {
				continue
			}
			coll.Add(tag, rec)
			res.Records++
		}
		results = append(results, res)
	}
	return coll, results
}

func buildRecord(evs []tbevents.ScalarEvent, runName, file string, maxStep int64) Record {
	rec := Record{RunName: runName, FilePath: file}
	for _, ev := range evs {
		if maxStep >= 0 && ev.Step > maxStep {
			continue
		}
		rec.Steps = append(rec.Steps, ev.Step)
		rec.Values = append(rec.Values, ev.Value)
		rec.WallTimes = append(rec.WallTimes, ev.WallTime)
	}
	return rec
}
