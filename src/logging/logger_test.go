package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved := baseLogger
	baseLogger = log.New(&buf, "", 0)
	t.Cleanup(func() { baseLogger = saved })
	return &buf
}

func TestInfof_NoDoubleFormattingWithPercent(t *testing.T) {
	buf := capture(t)
	SetLevel("info")

	Infof("loaded runs/exp%201/events.out.tfevents.123 (100% of tags)")

	out := buf.String()
	if !strings.Contains(out, "(100% of tags)") {
		t.Fatalf("log output missing expected percent segment: %s", out)
	}
	if strings.Contains(out, "(MISSING)") {
		t.Fatalf("log output shows fmt artifact: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	SetLevel("warn")
	Infof("hidden")
	Warnf("visible %d", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "[WARN] visible 1") {
		t.Fatalf("warn line missing: %s", out)
	}
	SetLevel("info")
}

func TestSetLevelUnknownIgnored(t *testing.T) {
	SetLevel("info")
	SetLevel("nonsense")
	if getLevel() != LevelInfo {
		t.Fatalf("unknown level should leave current level untouched, got %d", getLevel())
	}
}
