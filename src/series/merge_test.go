package series

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZhBF/TB-Metrics-Visualizer/src/tbevents"
)

// writeEvents creates dir (if needed) and an event file in it holding the
// given tag observations as (step, value, wallTime) triples.
func writeEvents(t *testing.T, dir, suffix string, tags map[string][][3]float64) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(dir, tbevents.FilePrefix+suffix)
	w, err := tbevents.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for tag, obs := range tags {
		for _, o := range obs {
			if err := w.WriteScalar(tag, int64(o[0]), o[2], o[1]); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestMergeTwoRootsOneMetric(t *testing.T) {
	base := t.TempDir()
	root1 := filepath.Join(base, "run1")
	root2 := filepath.Join(base, "run2")
	f1 := writeEvents(t, root1, ".1", map[string][][3]float64{
		"loss": {{0, 2.0, 100}, {1, 1.5, 160}, {2, 1.0, 220}},
	})
	f2 := writeEvents(t, root2, ".2", map[string][][3]float64{
		"loss": {{0, 3.0, 100}, {1, 2.0, 160}, {2, 1.2, 220}},
	})

	coll, results := Merge([]string{f1, f2}, []string{root1, root2}, NoStepLimit)
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected file error: %v", r.Err)
		}
	}
	if coll.Len() != 1 {
		t.Fatalf("expected 1 metric, got %v", coll.Tags())
	}
	runs := coll.Runs("loss")
	if len(runs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(runs))
	}
	// Files sit directly inside their matching roots: relative path is ".".
	if runs[0].RunName != "." || runs[1].RunName != "." {
		t.Fatalf("expected root-relative run names, got %q and %q", runs[0].RunName, runs[1].RunName)
	}
	if len(runs[0].Steps) != 3 || runs[0].Steps[2] != 2 {
		t.Fatalf("steps preserved wrong: %v", runs[0].Steps)
	}
}

func TestRunNameRelativeAndFallback(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "logs")
	inside := filepath.Join(root, "expA", "seed1")
	if err := os.MkdirAll(inside, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(inside, tbevents.FilePrefix+".0")

	got := RunName(file, []string{root})
	if got != filepath.Join("expA", "seed1") {
		t.Fatalf("relative run name wrong: %q", got)
	}

	// No root matches: fall back to the absolute parent directory.
	outside := RunName(file, []string{filepath.Join(base, "other")})
	if outside != inside {
		t.Fatalf("fallback run name wrong: %q", outside)
	}

	// First matching root wins, in the order supplied.
	first := RunName(file, []string{filepath.Join(root, "expA"), root})
	if first != "seed1" {
		t.Fatalf("first-root-wins violated: %q", first)
	}
}

func TestSameParentSharesRunName(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "exp")
	f1 := writeEvents(t, dir, ".a", map[string][][3]float64{"loss": {{0, 1, 1}}})
	f2 := writeEvents(t, dir, ".b", map[string][][3]float64{"loss": {{0, 2, 2}}})

	coll, _ := Merge([]string{f1, f2}, []string{base}, NoStepLimit)
	runs := coll.Runs("loss")
	if len(runs) != 2 {
		t.Fatalf("expected 2 independent records, got %d", len(runs))
	}
	if runs[0].RunName != runs[1].RunName {
		t.Fatalf("same parent dir must share a run name: %q vs %q", runs[0].RunName, runs[1].RunName)
	}
}

func TestMergeMaxStepFilter(t *testing.T) {
	base := t.TempDir()
	f := writeEvents(t, base, ".0", map[string][][3]float64{
		"loss":    {{0, 1, 1}, {3, 2, 2}, {6, 3, 3}, {9, 4, 4}},
		"too_far": {{7, 1, 1}, {8, 2, 2}},
	})

	coll, _ := Merge([]string{f}, []string{base}, 5)
	runs := coll.Runs("loss")
	if len(runs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(runs))
	}
	if len(runs[0].Steps) != 2 || runs[0].Steps[0] != 0 || runs[0].Steps[1] != 3 {
		t.Fatalf("max-step filter wrong: %v", runs[0].Steps)
	}
	for _, s := range runs[0].Steps {
		if s > 5 {
			t.Fatalf("step beyond bound survived: %d", s)
		}
	}
	// A tag whose observations all exceed the bound is absent entirely.
	if coll.Runs("too_far") != nil {
		t.Fatal("fully-filtered tag should not appear in the collection")
	}
	if coll.Len() != 1 {
		t.Fatalf("expected only the surviving metric, got %v", coll.Tags())
	}
}

func TestMergeCorruptFileIsolated(t *testing.T) {
	base := t.TempDir()
	good := writeEvents(t, base, ".good", map[string][][3]float64{"loss": {{0, 1, 1}}})
	bad := filepath.Join(base, tbevents.FilePrefix+".bad")
	if err := os.WriteFile(bad, []byte("not a tfrecord stream at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	coll, results := Merge([]string{bad, good}, []string{base}, NoStepLimit)
	if len(results) != 2 {
		t.Fatalf("expected one result per file, got %d", len(results))
	}
	if results[0].Err == nil {
		t.Fatal("corrupt file should report an error")
	}
	if results[1].Err != nil {
		t.Fatalf("good file should load: %v", results[1].Err)
	}
	if coll.Len() != 1 || len(coll.Runs("loss")) != 1 {
		t.Fatalf("good file's data missing: %v", coll.Tags())
	}
}

func TestCollectionOrdering(t *testing.T) {
	c := NewCollection()
	c.Add("b", Record{Steps: []int64{0}})
	c.Add("a", Record{Steps: []int64{0}})
	c.Add("b", Record{Steps: []int64{1}})

	tags := c.Tags()
	if tags[0] != "b" || tags[1] != "a" {
		t.Fatalf("insertion order lost: %v", tags)
	}
	sorted := c.SortedTags()
	if sorted[0] != "a" || sorted[1] != "b" {
		t.Fatalf("sorted order wrong: %v", sorted)
	}
	if len(c.Runs("b")) != 2 {
		t.Fatalf("records per tag wrong: %d", len(c.Runs("b")))
	}
	if c.Runs("missing") != nil {
		t.Fatal("unknown tag should return nil")
	}
}
