package vaspdata

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	saved := baseLogger
	baseLogger = log.New(&buf, "", 0)
	t.Cleanup(func() { baseLogger = saved })
	return &buf
}

func TestLogLevelFiltering(t *testing.T) {
	buf := captureLog(t)
	SetLogLevel("warn")
	defer SetLogLevel("info")

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message logged at warn level: %s", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Fatalf("warn message missing: %s", out)
	}
}

func TestInfofPlainMessageKeepsPercent(t *testing.T) {
	buf := captureLog(t)
	SetLogLevel("info")

	Infof("converged to 99.9% of target")

	out := buf.String()
	if !strings.Contains(out, "99.9% of target") {
		t.Fatalf("percent mangled: %s", out)
	}
	if strings.Contains(out, "MISSING") {
		t.Fatalf("fmt artifact in output: %s", out)
	}
}

func TestSetLogLevelIgnoresUnknown(t *testing.T) {
	SetLogLevel("info")
	SetLogLevel("loud")
	if getLevel() != LevelInfo {
		t.Fatalf("unknown level changed state: %v", getLevel())
	}
}
