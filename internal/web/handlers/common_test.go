package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestHealthHandler_Check(t *testing.T) {
	tests := []struct {
		name       string
		db         Pinger
		wantStatus int
		wantBody   map[string]string
	}{
		{"no database", nil, http.StatusOK, map[string]string{"status": "ok"}},
		{"database up", fakePinger{}, http.StatusOK, map[string]string{"status": "ok"}},
		{"database down", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable,
			map[string]string{"status": "degraded", "database": "unreachable"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(tt.db).Check(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for k, v := range tt.wantBody {
				if body[k] != v {
					t.Errorf("expected %s=%q, got %q", k, v, body[k])
				}
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusBadRequest, "bad input")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "bad input" {
		t.Errorf("expected error message, got %v", body)
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("arrival\r\nINFO forged line"); got != "arrivalINFO forged line" {
		t.Errorf("unexpected sanitized value %q", got)
	}
}
