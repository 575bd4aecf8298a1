package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/database"
	"github.com/PhilHem/go-totp-identity/backend/models"

	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestDBHandler_PersistsSourceAndEmail(t *testing.T) {
	db := openDB(t)
	var out bytes.Buffer
	log := slog.New(NewDBHandler(&out, db)).With("source", "auth")

	log.Info("user registered", "email", "a@x.com", "otp_required", false)

	var entries []models.LogEntry
	if err := db.Find(&entries).Error; err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Source != "auth" || e.Email != "a@x.com" || e.Level != "INFO" {
		t.Errorf("Unexpected entry %+v", e)
	}
	if !strings.Contains(e.Data, `"otp_required":false`) {
		t.Errorf("Expected remaining attrs in data, got %q", e.Data)
	}
	if strings.Contains(e.Data, "email") {
		t.Errorf("Email should not be duplicated in data, got %q", e.Data)
	}

	var line map[string]any
	if err := json.Unmarshal(out.Bytes(), &line); err != nil {
		t.Fatalf("Expected JSON on the writer, got %q", out.String())
	}
	if line["source"] != "auth" {
		t.Errorf("Handler attrs should reach the JSON output, got %v", line)
	}
}

func TestDBHandler_NilDatabase(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(NewDBHandler(&out, nil))

	log.Warn("no database", "source", "http")

	if !strings.Contains(out.String(), "no database") {
		t.Errorf("Expected record on the writer, got %q", out.String())
	}
}

func TestDBHandler_SkipsDebug(t *testing.T) {
	db := openDB(t)
	log := slog.New(NewDBHandler(&bytes.Buffer{}, db))

	log.Debug("chatty", "source", "http")

	var count int64
	db.Model(&models.LogEntry{}).Count(&count)
	if count != 0 {
		t.Errorf("Debug records should not be persisted at the default level, got %d", count)
	}
}

func TestPruneLogs(t *testing.T) {
	db := openDB(t)
	db.Create(&models.LogEntry{CreatedAt: time.Now().Add(-72 * time.Hour), Level: "INFO", Message: "old"})
	db.Create(&models.LogEntry{CreatedAt: time.Now(), Level: "INFO", Message: "new"})

	n, err := PruneLogs(context.Background(), db, 48*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned entry, got %d", n)
	}

	var left []models.LogEntry
	db.Find(&left)
	if len(left) != 1 || left[0].Message != "new" {
		t.Errorf("Expected only the new entry to remain, got %+v", left)
	}
}

func TestCleanupOldLogs_StopsOnCancel(t *testing.T) {
	db := openDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		CleanupOldLogs(ctx, db, time.Hour, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CleanupOldLogs should return after cancel")
	}
}
