package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestRequestLogger_LogsStatusWithoutQuery(t *testing.T) {
	buf := captureLogs(t)
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	req := httptest.NewRequest("GET", "/auth/otp/enable?response_type=URL", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON log line, got %q", buf.String())
	}
	if entry["level"] != "WARN" {
		t.Errorf("4xx should log at WARN, got %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusConflict) {
		t.Errorf("Expected status 409, got %v", entry["status"])
	}
	if entry["remote_ip"] != "10.0.0.1" {
		t.Errorf("Expected first forwarded hop, got %v", entry["remote_ip"])
	}
	if strings.Contains(buf.String(), "response_type") {
		t.Error("Query string must not be logged")
	}
}

func TestRecovery_ReturnsJSONError(t *testing.T) {
	captureLogs(t)
	handler := Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != true || body["message"] == "" {
		t.Errorf("Expected {error:true,message}, got %v", body)
	}
}
