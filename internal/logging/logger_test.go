package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "outreach.log")

	logger, closeLog, err := New("debug", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Errorf("log file = %q, want hello entry", data)
	}
}

func TestCloseReleasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outreach.log")

	logger, closeLog, err := New("info", path)
	if err != nil {
		t.Fatal(err)
	}
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}
	if err := closeLog(); err != nil {
		t.Errorf("second close = %v, want nil", err)
	}

	// Writes after close go nowhere instead of reaching the file.
	logger.Info("after close")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "after close") {
		t.Errorf("log file = %q, want no entries after close", data)
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger, closeLog, err := New("warn", "")
	if err != nil {
		t.Fatal(err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
	if err := closeLog(); err != nil {
		t.Errorf("close = %v, want nil", err)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := New("loud", "")
	if err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	if !strings.Contains(err.Error(), "log level") {
		t.Errorf("err = %v, want log level context", err)
	}
}
