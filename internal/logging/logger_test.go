package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reflexrun/reflex/internal/config"
)

func resetPackageState() {
	mu.Lock()
	loggers = make(map[Category]*Logger)
	cfg = config.LoggingConfig{}
	logsDir = ""
	mu.Unlock()
	auditMu.Lock()
	auditLogger = nil
	auditMu.Unlock()
}

func TestInitializeProductionModeIsNoop(t *testing.T) {
	resetPackageState()
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "logs")

	if err := Initialize(config.LoggingConfig{DebugMode: false}, dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("expected no logs directory to be created in production mode")
	}
}

func TestInitializeDebugModeCreatesCategoryFiles(t *testing.T) {
	resetPackageState()
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "logs")

	err := Initialize(config.LoggingConfig{
		DebugMode: true,
		Level:     "debug",
		Format:    "json",
	}, dir)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Get(CategorySupervisor).Info("worker %s evaluated", "pid-1")
	Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), "supervisor") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a supervisor log file under %s, got %v", dir, entries)
	}
}

func TestIsCategoryEnabledHonorsDebugModeAndPerCategoryToggle(t *testing.T) {
	resetPackageState()
	mu.Lock()
	cfg = config.LoggingConfig{DebugMode: true, Categories: map[string]bool{"handlers": false}}
	mu.Unlock()

	if IsCategoryEnabled(CategoryHandlers) {
		t.Error("expected handlers category to be disabled")
	}
	if !IsCategoryEnabled(CategorySupervisor) {
		t.Error("expected supervisor category (unspecified) to default to enabled")
	}

	mu.Lock()
	cfg = config.LoggingConfig{DebugMode: false}
	mu.Unlock()
	if IsCategoryEnabled(CategorySupervisor) {
		t.Error("expected every category disabled when DebugMode is false")
	}
}

func TestGetReturnsNoOpLoggerWhenDisabled(t *testing.T) {
	resetPackageState()
	mu.Lock()
	cfg = config.LoggingConfig{DebugMode: false}
	mu.Unlock()

	// Must not panic even though no logs directory exists.
	Get(CategoryHeap).Info("should be discarded")
}
