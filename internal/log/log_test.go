package log

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitWithFileWritesEntries(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "wxrollupd.log")

	if err := InitWithFile(false, logFile); err != nil {
		t.Fatalf("InitWithFile failed: %v", err)
	}

	Infow("archive record stored", "dateTime", 1700000000)
	Sync()

	info, err := os.Stat(logFile)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	if info.Size() == 0 {
		t.Errorf("expected log file to contain entries, got empty file")
	}
}

func TestGetSugaredLoggerFallback(t *testing.T) {
	log = nil
	baseLogger = nil

	if GetSugaredLogger() == nil {
		t.Fatal("expected fallback sugared logger")
	}
	if GetZapLogger() == nil {
		t.Fatal("expected fallback zap logger")
	}
}
