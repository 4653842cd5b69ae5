package debug

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

func TestEnabled(t *testing.T) {
	oldEnabled, oldVerbose := enabled, verboseMode
	defer func() { enabled, verboseMode = oldEnabled, oldVerbose }()

	enabled, verboseMode = false, false
	if Enabled() {
		t.Error("Enabled() = true with both gates off")
	}

	enabled = true
	if !Enabled() {
		t.Error("Enabled() = false with env gate on")
	}

	enabled, verboseMode = false, true
	if !Enabled() {
		t.Error("Enabled() = false with verbose mode on")
	}
}

func TestSetVerbose(t *testing.T) {
	oldVerbose := verboseMode
	defer func() { verboseMode = oldVerbose }()

	SetVerbose(true)
	if !Enabled() {
		t.Error("Enabled() = false after SetVerbose(true)")
	}
	SetVerbose(false)
}

func TestSetQuiet(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet() = false after SetQuiet(true)")
	}
	SetQuiet(false)
	if IsQuiet() {
		t.Error("IsQuiet() = true after SetQuiet(false)")
	}
}

// captureStderr runs fn with os.Stderr redirected to a pipe and returns
// what was written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()
	_ = w.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestLogf(t *testing.T) {
	oldEnabled, oldVerbose := enabled, verboseMode
	defer func() { enabled, verboseMode = oldEnabled, oldVerbose }()

	enabled, verboseMode = false, false
	if out := captureStderr(t, func() { Logf("hidden %d\n", 1) }); out != "" {
		t.Errorf("Logf wrote %q while disabled", out)
	}

	verboseMode = true
	out := captureStderr(t, func() { Logf("shown %d\n", 2) })
	if out != "shown 2\n" {
		t.Errorf("Logf wrote %q, want %q", out, "shown 2\n")
	}
}

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// what was written.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	_ = w.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestPrintNormalRespectsQuiet(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	quietMode = false
	out := captureStdout(t, func() { PrintNormal("fetched %d issues\n", 3) })
	if out != "fetched 3 issues\n" {
		t.Errorf("PrintNormal wrote %q, want %q", out, "fetched 3 issues\n")
	}

	quietMode = true
	if out := captureStdout(t, func() { PrintNormal("hidden\n") }); out != "" {
		t.Errorf("PrintNormal wrote %q in quiet mode", out)
	}
}

func TestWarnfAlwaysVisible(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	quietMode = true
	out := captureStderr(t, func() { Warnf("cache unreadable: %s\n", "boom") })
	if !strings.HasPrefix(out, "Warning: ") || !strings.Contains(out, "boom") {
		t.Errorf("Warnf wrote %q, want prefixed warning", out)
	}
}
