package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetSink(&buf)
	defer SetSink(&bytes.Buffer{})

	logger := New("logtest")
	SetLevel(Notice)
	logger.Debug("hidden")
	logger.Notice("shown")

	SetLevel(Debug, "logtest")
	logger.Debugf("now %s", "visible")
	SetLevel(Notice)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("expected debug message to be filtered; got %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "now visible") {
		t.Fatalf("expected notice and module debug messages; got %q", out)
	}
	if !strings.Contains(out, "[logtest]") {
		t.Fatalf("expected module name in output; got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	specs := []struct {
		in     string
		exp    Level
		expErr bool
	}{
		{"debug", Debug, false},
		{"WARN", Warning, false},
		{"error", Error, false},
		{"chatty", Notice, true},
	}
	for index, spec := range specs {
		got, err := ParseLevel(spec.in)
		if (err != nil) != spec.expErr {
			t.Fatalf("[spec %d] expected error %t; got %v", index, spec.expErr, err)
		}
		if got != spec.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", index, spec.exp, got)
		}
	}
}
