// Package logger provides the slog handler used by the server. Records are
// written as JSON and, when a database is configured, persisted as
// models.LogEntry rows.
package logger

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/models"

	"gorm.io/gorm"
)

type DBHandler struct {
	db          *gorm.DB
	jsonHandler slog.Handler
	attrs       []slog.Attr
}

// NewDBHandler writes JSON records to w. db may be nil, in which case
// nothing is persisted.
func NewDBHandler(w io.Writer, db *gorm.DB) *DBHandler {
	return &DBHandler{
		db:          db,
		jsonHandler: slog.NewJSONHandler(w, nil),
	}
}

func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.jsonHandler.Enabled(ctx, level)
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	_ = h.jsonHandler.Handle(ctx, r)
	if h.db == nil {
		return nil
	}

	entry := models.LogEntry{
		CreatedAt: r.Time,
		Level:     r.Level.String(),
		Message:   r.Message,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data := make(map[string]any)
	collect := func(a slog.Attr) bool {
		switch a.Key {
		case "source":
			entry.Source = a.Value.String()
		case "email":
			entry.Email = a.Value.String()
		case "stack":
			// stdout only
		default:
			data[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if len(data) > 0 {
		b, err := json.Marshal(data)
		if err == nil {
			entry.Data = string(b)
		}
	}

	return h.db.WithContext(context.WithoutCancel(ctx)).Create(&entry).Error
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &DBHandler{
		db:          h.db,
		jsonHandler: h.jsonHandler.WithAttrs(attrs),
		attrs:       newAttrs,
	}
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	return h
}

// PruneLogs deletes entries older than maxAge and returns how many went.
func PruneLogs(ctx context.Context, db *gorm.DB, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	res := db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.LogEntry{})
	return res.RowsAffected, res.Error
}

// CleanupOldLogs prunes old entries every interval until ctx is done.
func CleanupOldLogs(ctx context.Context, db *gorm.DB, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := PruneLogs(ctx, db, maxAge); err != nil && ctx.Err() == nil {
				slog.Warn("log cleanup failed", "source", "logger", "error", err.Error())
			}
		}
	}
}
