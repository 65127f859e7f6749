package monitoring

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not call the previous logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetLogWriter(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var buf bytes.Buffer
	SetLogWriter("[motion] ", &buf)
	Logf("wrote record %d", 7)

	out := buf.String()
	if !strings.HasPrefix(out, "[motion] ") {
		t.Errorf("expected prefix, got %q", out)
	}
	if !strings.Contains(out, "wrote record 7") {
		t.Errorf("expected message, got %q", out)
	}

	buf.Reset()
	SetLogWriter("", nil)
	Logf("muted")
	if buf.Len() != 0 {
		t.Errorf("expected muted logger, got %q", buf.String())
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}
