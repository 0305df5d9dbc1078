package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelParsing(t *testing.T) {
	var buf bytes.Buffer

	l := newLogger(&buf, "debug", "text")
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug logger should emit debug records")
	}

	buf.Reset()
	l = newLogger(&buf, "bogus", "text")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("unrecognized level should default to info, got %q", buf.String())
	}
	l.Info("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("info record missing at default level")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "info", "json")
	l.Info("request", "status", 200)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "request" {
		t.Errorf("msg = %v, want request", rec["msg"])
	}
	if rec["service"] != "ourhaus" {
		t.Errorf("service = %v, want ourhaus", rec["service"])
	}
}

func TestTextFormatCarriesService(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "warn", "text").Warn("slow query")
	if !strings.Contains(buf.String(), "service=ourhaus") {
		t.Errorf("missing service attribute: %q", buf.String())
	}
}
