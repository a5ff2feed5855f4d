package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reflexrun/reflex/internal/config"
)

func TestAuditLogWritesJSONLineRegardlessOfConsoleFormat(t *testing.T) {
	resetPackageState()
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "logs")

	if err := Initialize(config.LoggingConfig{DebugMode: true, Level: "info", Format: "console"}, dir); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	AuditFor("pid-1", "sum").WorkerEvaluate(12, true, "")
	Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var auditFile string
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			auditFile = filepath.Join(dir, e.Name())
		}
	}
	if auditFile == "" {
		t.Fatalf("expected an audit log file, got %v", entries)
	}

	data, err := os.ReadFile(auditFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"event":"worker_evaluate"`) {
		t.Errorf("expected a JSON audit line naming worker_evaluate, got: %s", data)
	}
	if !strings.Contains(string(data), `"pid":"pid-1"`) {
		t.Errorf("expected the audit line to carry pid, got: %s", data)
	}
}

func TestAuditDisabledByCategoryToggleIsSilent(t *testing.T) {
	resetPackageState()
	tempDir := t.TempDir()
	dir := filepath.Join(tempDir, "logs")

	err := Initialize(config.LoggingConfig{
		DebugMode:  true,
		Level:      "info",
		Format:     "console",
		Categories: map[string]bool{"audit": false},
	}, dir)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	Audit().ActorSpawn("supervisor")
	Sync()

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), "audit") {
			t.Errorf("expected no audit log file when the audit category is disabled, found %s", e.Name())
		}
	}
}
