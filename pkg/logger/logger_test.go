package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLogger_BasicLevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "text", Output: &buf})

	log.Debug("dbg", String("k", "v"))
	log.Info("info", Int("n", 42))
	log.Warn("warn", Bool("ok", true))
	log.Error("err", Error(nil))

	out := buf.String()
	// Expect all levels present (debug is the lowest configured)
	for _, s := range []string{"[DEBUG] dbg k=v", "[INFO] info n=42", "[WARN] warn ok=true", "[ERROR] err error=nil"} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected output to contain %q, got: %s", s, out)
		}
	}
}

func TestLogger_WithComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "info", Output: &buf})
	comp := base.WithComponent("lce")

	comp.Info("started")

	out := buf.String()
	if !strings.Contains(out, "[lce]") {
		t.Fatalf("expected component prefix in output, got: %s", out)
	}
	if !strings.Contains(out, "[INFO] started") {
		t.Fatalf("expected info message in output, got: %s", out)
	}
}

func TestLogger_Hook(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: "debug", Output: &buf})

	hook := base.Hook("sfmt")
	hook("IE <%s> len %d", "PORTABLE-IDENTITY", 7)

	out := buf.String()
	if !strings.Contains(out, "[sfmt]") || !strings.Contains(out, "IE <PORTABLE-IDENTITY> len 7") {
		t.Fatalf("unexpected hook output: %s", out)
	}

	buf.Reset()
	quiet := New(Config{Level: "info", Output: &buf})
	quiet.Hook("sfmt")("dropped %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("expected no output when debug disabled, got: %s", buf.String())
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf}).WithComponent("mm")

	log.Info("procedure complete", Hex("data", []byte{0x05, 0x54}))

	out := buf.String()
	for _, s := range []string{`"level":"info"`, `"component":"mm"`, `"data":"0554"`} {
		if !strings.Contains(out, s) {
			t.Fatalf("expected %q in %s", s, out)
		}
	}
}

func TestLogger_JSONKeepsTypes(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("swept", Int("n", 3), Bool("ok", true), Duration("took", 1500*time.Millisecond))

	line := buf.String()
	entry := make(map[string]interface{})
	if err := json.Unmarshal([]byte(line[strings.Index(line, "{"):]), &entry); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, line)
	}
	if entry["n"] != float64(3) || entry["ok"] != true || entry["took"] != "1.5s" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
