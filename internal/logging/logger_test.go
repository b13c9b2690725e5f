package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestConfigure_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "warn", "logfmt")
	defer Configure(os.Stderr, "info", "text")

	log := With("test")
	log.Info("hidden", "n", 1)
	log.Warn("shown", "n", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "n=2") || !strings.Contains(out, "prefix=test") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestConfigure_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	Configure(&buf, "chatty", "text")
	defer Configure(os.Stderr, "info", "text")

	L.Debug("debug line")
	L.Info("info line")

	out := buf.String()
	if strings.Contains(out, "debug line") {
		t.Errorf("debug should be filtered by default: %q", out)
	}
	if !strings.Contains(out, "info line") {
		t.Errorf("info line missing: %q", out)
	}
}
