package render

import (
	"fmt"
	"testing"
)

func TestColorMapStableAssignment(t *testing.T) {
	cm := NewColorMap()
	a := cm.Color("run1")
	b := cm.Color("run2")
	if a == b {
		t.Fatal("distinct runs should get distinct colors")
	}
	if cm.Color("run1") != a || cm.Color("run2") != b {
		t.Fatal("repeat lookups must return the remembered color")
	}
}

func TestColorMapAssignmentOrderDeterministic(t *testing.T) {
	first := NewColorMap()
	second := NewColorMap()
	for i := 0; i < 12; i++ {
		run := fmt.Sprintf("run-%d", i)
		if first.Color(run) != second.Color(run) {
			t.Fatalf("two passes diverged at %s", run)
		}
	}
}

func TestColorMapCyclesPalette(t *testing.T) {
	cm := NewColorMap()
	seen := map[string]bool{}
	for i := 0; i < 40; i++ {
		c := cm.Color(fmt.Sprintf("run-%d", i))
		seen[fmt.Sprintf("%v", c)] = true
	}
	// palette is finite and cyclic: far fewer distinct colors than runs
	if len(seen) == 0 || len(seen) >= 40 {
		t.Fatalf("expected a cycling palette, got %d distinct colors", len(seen))
	}
}

func TestColorMapIndependentPasses(t *testing.T) {
	a := NewColorMap().Color("whatever")
	b := NewColorMap().Color("other")
	if a != b {
		t.Fatal("fresh passes must restart the palette cursor")
	}
}

func TestFallbackPaletteSize(t *testing.T) {
	if len(fallbackPalette) != 10 {
		t.Fatalf("fallback palette should hold 10 colors, has %d", len(fallbackPalette))
	}
}
