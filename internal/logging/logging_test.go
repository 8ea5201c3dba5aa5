package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, level int) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevLevel := GetLevel()
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(prevLevel)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"none", None, false},
		{"ERROR", Error, false},
		{"warn", Warning, false},
		{"warning", Warning, false},
		{" info ", Info, false},
		{"debug", Debug, false},
		{"verbose", Info, true},
	}
	for _, tc := range testCases {
		got, err := ParseLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestSetLevelClamps(t *testing.T) {
	prev := GetLevel()
	t.Cleanup(func() { SetLevel(prev) })

	SetLevel(-5)
	if got := GetLevel(); got != None {
		t.Errorf("SetLevel(-5) -> %d, want %d", got, None)
	}
	SetLevel(42)
	if got := GetLevel(); got != Debug {
		t.Errorf("SetLevel(42) -> %d, want %d", got, Debug)
	}
}

func TestLogfRespectsLevel(t *testing.T) {
	buf := captureOutput(t, Warning)

	Logf(Info, "hidden %d", 1)
	Logf(Warning, "shown %d", 2)
	Logf(Error, "also shown")

	out := buf.String()
	if strings.Contains(out, "hidden 1") {
		t.Errorf("info message written at warning level: %q", out)
	}
	if !strings.Contains(out, "shown 2") || !strings.Contains(out, "also shown") {
		t.Errorf("expected warning and error messages, got %q", out)
	}
}

func TestDebugIncludesCaller(t *testing.T) {
	buf := captureOutput(t, Debug)

	Logf(Debug, "with caller")

	if !strings.Contains(buf.String(), "logging_test.go") {
		t.Errorf("debug line missing caller info: %q", buf.String())
	}
}

func TestEventDisabledIsNil(t *testing.T) {
	buf := captureOutput(t, Error)

	if ev := Event(Info); ev != nil {
		t.Fatalf("Event(Info) at error level should be nil")
	}
	// Chaining on a nil event must not panic or write.
	Event(Debug).Str("id", "x").Msg("dropped")
	Event(Error).Str("id", "a1").Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("unexpected structured output: %q", out)
	}
}

func TestSetupLoggingInvalidFallsBackToInfo(t *testing.T) {
	_ = captureOutput(t, Info)
	if got := SetupLogging("loud"); got != Info {
		t.Errorf("SetupLogging(loud) = %d, want %d", got, Info)
	}
}
