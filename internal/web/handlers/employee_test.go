package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/staff-clock/internal/backend"
	"github.com/kozaktomas/staff-clock/internal/config"
	"github.com/kozaktomas/staff-clock/internal/database"
	"github.com/kozaktomas/staff-clock/internal/database/mock"
	"github.com/kozaktomas/staff-clock/internal/recorder"
	"github.com/kozaktomas/staff-clock/internal/web/middleware"
)

const testAttemptID = "5f0c6a8e-1f4b-4c2e-9d7a-3b8e2f1a6c90"

func floatPtr(f float64) *float64 { return &f }

func testEmployee() *database.Employee {
	return &database.Employee{
		ID:             42,
		Name:           "Maria Souza",
		SchoolID:       7,
		SchoolName:     "Escola Central",
		AnchorLat:      floatPtr(-23.55052),
		AnchorLng:      floatPtr(-46.633308),
		FaceDescriptor: []float32{0.25, -0.5, 0.125},
	}
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Proximity.RadiusMeters = 200
	return cfg
}

func testPhoto(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding test photo: %v", err)
	}
	return recorder.DataURL(buf.Bytes())
}

func employeeRequest(method, target string, body []byte, emp *database.Employee) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if emp != nil {
		req = req.WithContext(middleware.SetEmployeeInContext(req.Context(), emp))
	}
	return req
}

func clockBody(t *testing.T, req backend.ClockEventRequest) []byte {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp backend.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestEmployeeHandler_Info(t *testing.T) {
	h := NewEmployeeHandler(testConfig(), mock.NewMockClockEventStore())

	t.Run("with descriptor", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Info(rec, employeeRequest(http.MethodGet, "/api/employee/info", nil, testEmployee()))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp backend.ProfileResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Success || resp.Data.ID != 42 || resp.Data.SchoolID != 7 {
			t.Errorf("unexpected profile: %+v", resp)
		}
		if resp.Data.AnchorLat == nil || *resp.Data.AnchorLat != -23.55052 {
			t.Errorf("expected anchor lat, got %v", resp.Data.AnchorLat)
		}
		var desc []float32
		if err := json.Unmarshal(resp.Data.EnrolledDescriptor, &desc); err != nil {
			t.Fatalf("descriptor is not an array: %s", resp.Data.EnrolledDescriptor)
		}
		if len(desc) != 3 || desc[1] != -0.5 {
			t.Errorf("unexpected descriptor %v", desc)
		}
	})

	t.Run("not enrolled", func(t *testing.T) {
		emp := testEmployee()
		emp.FaceDescriptor = nil
		emp.AnchorLat, emp.AnchorLng = nil, nil
		rec := httptest.NewRecorder()
		h.Info(rec, employeeRequest(http.MethodGet, "/api/employee/info", nil, emp))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"enrolledDescriptor":null`) {
			t.Errorf("expected null descriptor, got %s", body)
		}
		if !strings.Contains(body, `"anchorLat":null`) {
			t.Errorf("expected null anchor, got %s", body)
		}
	})

	t.Run("no employee in context", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Info(rec, employeeRequest(http.MethodGet, "/api/employee/info", nil, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestEmployeeHandler_Clock(t *testing.T) {
	photo := testPhoto(t)
	valid := backend.ClockEventRequest{
		EventType: "arrival",
		Lat:       -23.5510,
		Lng:       -46.6335,
		Photo:     photo,
		AttemptID: testAttemptID,
	}

	t.Run("records event", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		h := NewEmployeeHandler(testConfig(), store)
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, valid), testEmployee()))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp backend.ClockEventResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.Success || resp.ID != 1 || resp.Message != "clock event recorded" {
			t.Errorf("unexpected response %+v", resp)
		}

		events := store.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 stored event, got %d", len(events))
		}
		ev := events[0]
		if ev.EmployeeID != 42 || ev.EventType != "ARRIVAL" || ev.AttemptID != testAttemptID || !ev.Verified {
			t.Errorf("unexpected stored event %+v", ev)
		}
		if ev.DistanceMeters <= 0 || ev.DistanceMeters > 200 {
			t.Errorf("expected distance within radius, got %.1f", ev.DistanceMeters)
		}
		if len(ev.Photo) == 0 {
			t.Error("expected photo bytes to be stored")
		}
	})

	t.Run("resubmitted attempt is idempotent", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		h := NewEmployeeHandler(testConfig(), store)
		for i := range 2 {
			rec := httptest.NewRecorder()
			h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, valid), testEmployee()))
			if rec.Code != http.StatusOK {
				t.Fatalf("submission %d: expected 200, got %d", i, rec.Code)
			}
			if i == 1 && !strings.Contains(rec.Body.String(), "already recorded") {
				t.Errorf("expected already recorded message, got %s", rec.Body.String())
			}
		}
		if n := len(store.Events()); n != 1 {
			t.Errorf("expected exactly 1 stored event, got %d", n)
		}
	})

	t.Run("attempt owned by another employee", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		other := &database.StoredClockEvent{EmployeeID: 99, EventType: "ARRIVAL", AttemptID: testAttemptID}
		if _, err := store.SaveClockEvent(context.Background(), other); err != nil {
			t.Fatalf("seed: %v", err)
		}
		h := NewEmployeeHandler(testConfig(), store)
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, valid), testEmployee()))
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("outside radius", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		h := NewEmployeeHandler(testConfig(), store)
		far := valid
		far.Lat = -23.5600
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, far), testEmployee()))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if msg := decodeError(t, rec); !strings.Contains(msg, "outside allowed radius") {
			t.Errorf("unexpected error %q", msg)
		}
		if store.SaveCalled != 0 {
			t.Error("nothing may be stored for an out of range fix")
		}
	})

	t.Run("school without location", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		h := NewEmployeeHandler(testConfig(), store)
		emp := testEmployee()
		emp.AnchorLng = nil
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, valid), emp))

		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
		if store.SaveCalled != 0 {
			t.Error("nothing may be stored without an anchor")
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := mock.NewMockClockEventStore()
		store.SaveError = errors.New("disk full")
		h := NewEmployeeHandler(testConfig(), store)
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, valid), testEmployee()))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestEmployeeHandler_Clock_Validation(t *testing.T) {
	photo := testPhoto(t)
	base := backend.ClockEventRequest{
		EventType: "DEPARTURE",
		Lat:       -23.5510,
		Lng:       -46.6335,
		Photo:     photo,
		AttemptID: testAttemptID,
	}

	tests := []struct {
		name    string
		mutate  func(r *backend.ClockEventRequest)
		wantMsg string
	}{
		{"unknown event type", func(r *backend.ClockEventRequest) { r.EventType = "nap" }, "invalid eventType"},
		{"missing attempt id", func(r *backend.ClockEventRequest) { r.AttemptID = "" }, "invalid attemptId"},
		{"malformed attempt id", func(r *backend.ClockEventRequest) { r.AttemptID = "attempt-1" }, "invalid attemptId"},
		{"latitude out of range", func(r *backend.ClockEventRequest) { r.Lat = 91 }, "invalid coordinates"},
		{"longitude out of range", func(r *backend.ClockEventRequest) { r.Lng = -181 }, "invalid coordinates"},
		{"photo not a data url", func(r *backend.ClockEventRequest) { r.Photo = "not-a-photo" }, "invalid photo"},
		{"photo not an image", func(r *backend.ClockEventRequest) {
			r.Photo = recorder.DataURL([]byte("plain text pretending to be a photo"))
		}, "photo must be a JPEG or PNG image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mock.NewMockClockEventStore()
			h := NewEmployeeHandler(testConfig(), store)
			req := base
			tt.mutate(&req)
			rec := httptest.NewRecorder()
			h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", clockBody(t, req), testEmployee()))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
			if msg := decodeError(t, rec); msg != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, msg)
			}
			if store.SaveCalled != 0 {
				t.Error("invalid requests must not reach the store")
			}
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		h := NewEmployeeHandler(testConfig(), mock.NewMockClockEventStore())
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", []byte("{"), testEmployee()))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("body too large", func(t *testing.T) {
		h := NewEmployeeHandler(testConfig(), mock.NewMockClockEventStore())
		huge := `{"photo":"` + strings.Repeat("A", maxClockBodyBytes+1) + `"}`
		rec := httptest.NewRecorder()
		h.Clock(rec, employeeRequest(http.MethodPost, "/api/employee/clock", []byte(huge), testEmployee()))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})
}

func TestEmployeeHandler_History(t *testing.T) {
	store := mock.NewMockClockEventStore()
	base := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	seed := []database.StoredClockEvent{
		{EmployeeID: 42, EventType: "ARRIVAL", Timestamp: base, AttemptID: "a1", Verified: true, Photo: []byte{1}},
		{EmployeeID: 42, EventType: "LUNCH_OUT", Timestamp: base.Add(4 * time.Hour), AttemptID: "a2", Verified: true},
		{EmployeeID: 42, EventType: "LUNCH_RETURN", Timestamp: base.Add(5 * time.Hour), AttemptID: "a3", Verified: true},
		{EmployeeID: 99, EventType: "ARRIVAL", Timestamp: base.Add(time.Hour), AttemptID: "b1", Verified: true},
	}
	for i := range seed {
		if _, err := store.SaveClockEvent(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	h := NewEmployeeHandler(testConfig(), store)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantTypes  []string
	}{
		{"newest first", "/api/employee/history", http.StatusOK, []string{"LUNCH_RETURN", "LUNCH_OUT", "ARRIVAL"}},
		{"type filter", "/api/employee/history?type=ARRIVAL,LUNCH_RETURN", http.StatusOK, []string{"LUNCH_RETURN", "ARRIVAL"}},
		{"legacy filter names", "/api/employee/history?type=clock_in", http.StatusOK, []string{"ARRIVAL"}},
		{"filter with no rows", "/api/employee/history?type=DEPARTURE", http.StatusOK, []string{}},
		{"invalid filter", "/api/employee/history?type=ARRIVAL,nap", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.History(rec, employeeRequest(http.MethodGet, tt.target, nil, testEmployee()))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantTypes == nil {
				return
			}
			var resp backend.HistoryResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data == nil {
				t.Fatal("expected an empty array, not null")
			}
			if len(resp.Data) != len(tt.wantTypes) {
				t.Fatalf("expected %d entries, got %d", len(tt.wantTypes), len(resp.Data))
			}
			for i, want := range tt.wantTypes {
				if resp.Data[i].EventType != want {
					t.Errorf("entry %d: expected %s, got %s", i, want, resp.Data[i].EventType)
				}
			}
		})
	}

	t.Run("store failure", func(t *testing.T) {
		failing := mock.NewMockClockEventStore()
		failing.ListError = errors.New("timeout")
		rec := httptest.NewRecorder()
		NewEmployeeHandler(testConfig(), failing).History(rec, employeeRequest(http.MethodGet, "/api/employee/history", nil, testEmployee()))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}
