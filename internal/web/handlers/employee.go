package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/backend"
	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/config"
	"github.com/kozaktomas/staff-clock/internal/database"
	"github.com/kozaktomas/staff-clock/internal/location"
	"github.com/kozaktomas/staff-clock/internal/recorder"
	"github.com/kozaktomas/staff-clock/internal/web/middleware"
)

// maxClockBodyBytes bounds a clock request, photo included.
const maxClockBodyBytes = 5 << 20

// EmployeeHandler serves the authenticated employee endpoints
type EmployeeHandler struct {
	config *config.Config
	events database.ClockEventWriter
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(cfg *config.Config, events database.ClockEventWriter) *EmployeeHandler {
	return &EmployeeHandler{config: cfg, events: events}
}

// Info returns the employee profile the verification engine needs
func (h *EmployeeHandler) Info(w http.ResponseWriter, r *http.Request) {
	emp := middleware.GetEmployeeFromContext(r.Context())
	if emp == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	data := backend.ProfileData{
		ID:                 emp.ID,
		Name:               emp.Name,
		SchoolID:           emp.SchoolID,
		SchoolName:         emp.SchoolName,
		AnchorLat:          emp.AnchorLat,
		AnchorLng:          emp.AnchorLng,
		EnrolledDescriptor: json.RawMessage("null"),
	}
	if len(emp.FaceDescriptor) > 0 {
		raw, err := json.Marshal(emp.FaceDescriptor)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to encode descriptor")
			return
		}
		data.EnrolledDescriptor = raw
	}
	respondJSON(w, http.StatusOK, backend.ProfileResponse{Success: true, Data: data})
}

// Clock stores a verified clock event. Resubmitting an attempt returns the
// event stored the first time.
func (h *EmployeeHandler) Clock(w http.ResponseWriter, r *http.Request) {
	emp := middleware.GetEmployeeFromContext(r.Context())
	if emp == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req backend.ClockEventRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxClockBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	ev, status, msg := h.validateClock(emp, req)
	if status != 0 {
		respondError(w, status, msg)
		return
	}

	existing, err := h.events.GetClockEventByAttempt(r.Context(), ev.AttemptID)
	if err != nil {
		log.Printf("clock: looking up attempt %s: %v", ev.AttemptID, err)
		respondError(w, http.StatusInternalServerError, "failed to store clock event")
		return
	}
	if existing != nil {
		h.respondExisting(w, emp, existing)
		return
	}

	// Proximity is enforced again against the stored anchor.
	if !emp.HasAnchor() {
		respondError(w, http.StatusUnprocessableEntity, "school location is not configured")
		return
	}
	anchor := location.Coordinate{Lat: *emp.AnchorLat, Lng: *emp.AnchorLng}
	prox := location.Evaluate(location.Fix{Lat: ev.Lat, Lng: ev.Lng}, &anchor, h.config.Proximity.RadiusMeters)
	if !prox.WithinRange {
		log.Printf("clock: employee %d rejected at %.0fm from school %d", emp.ID, prox.DistanceMeters, emp.SchoolID)
		respondError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("outside allowed radius: %.0fm from school (limit %.0fm)", prox.DistanceMeters, h.config.Proximity.RadiusMeters))
		return
	}
	ev.DistanceMeters = prox.DistanceMeters

	created, err := h.events.SaveClockEvent(r.Context(), ev)
	if errors.Is(err, database.ErrAttemptConflict) {
		respondError(w, http.StatusConflict, "attempt id already used")
		return
	}
	if err != nil {
		log.Printf("clock: saving event for employee %d: %v", emp.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to store clock event")
		return
	}
	if !created {
		h.respondExisting(w, emp, ev)
		return
	}

	log.Printf("clock: employee %d %s at %.0fm (attempt %s)", emp.ID, ev.EventType, ev.DistanceMeters, ev.AttemptID)
	respondJSON(w, http.StatusOK, backend.ClockEventResponse{
		Success: true,
		Message: "clock event recorded",
		ID:      ev.ID,
	})
}

// validateClock converts the request into a row. A non-zero status reports
// the client error.
func (h *EmployeeHandler) validateClock(emp *database.Employee, req backend.ClockEventRequest) (*database.StoredClockEvent, int, string) {
	eventType, err := attendance.ParseEventType(req.EventType)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid eventType"
	}
	attemptID, err := uuid.Parse(req.AttemptID)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid attemptId"
	}
	if req.Lat < -90 || req.Lat > 90 || req.Lng < -180 || req.Lng > 180 {
		return nil, http.StatusBadRequest, "invalid coordinates"
	}
	photo, err := recorder.ParseDataURL(req.Photo)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid photo"
	}
	if mime := biometric.DetectMIMEType(photo); mime != "image/jpeg" && mime != "image/png" {
		return nil, http.StatusBadRequest, "photo must be a JPEG or PNG image"
	}

	return &database.StoredClockEvent{
		EmployeeID: emp.ID,
		EventType:  string(eventType),
		Lat:        req.Lat,
		Lng:        req.Lng,
		Photo:      photo,
		AttemptID:  attemptID.String(),
		Verified:   true,
	}, 0, ""
}

func (h *EmployeeHandler) respondExisting(w http.ResponseWriter, emp *database.Employee, ev *database.StoredClockEvent) {
	if ev.EmployeeID != emp.ID {
		respondError(w, http.StatusConflict, "attempt id already used")
		return
	}
	respondJSON(w, http.StatusOK, backend.ClockEventResponse{
		Success: true,
		Message: "clock event already recorded",
		ID:      ev.ID,
	})
}

// History lists the latest events of the employee, newest first. An optional
// comma-separated ?type= filter restricts the event types.
func (h *EmployeeHandler) History(w http.ResponseWriter, r *http.Request) {
	emp := middleware.GetEmployeeFromContext(r.Context())
	if emp == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var types []string
	if raw := r.URL.Query().Get("type"); raw != "" {
		for part := range strings.SplitSeq(raw, ",") {
			t, err := attendance.ParseEventType(part)
			if err != nil {
				log.Printf("history: employee %d sent bad filter %s", emp.ID, sanitizeForLog(raw))
				respondError(w, http.StatusBadRequest, "invalid type filter")
				return
			}
			types = append(types, string(t))
		}
	}

	events, err := h.events.ListClockEvents(r.Context(), emp.ID, types, database.HistoryLimit)
	if err != nil {
		log.Printf("history: employee %d: %v", emp.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	entries := make([]backend.HistoryEntry, 0, len(events))
	for _, ev := range events {
		entries = append(entries, backend.HistoryEntry{
			ID:        ev.ID,
			EventType: ev.EventType,
			Timestamp: ev.Timestamp,
			Lat:       ev.Lat,
			Lng:       ev.Lng,
			Verified:  ev.Verified,
		})
	}
	respondJSON(w, http.StatusOK, backend.HistoryResponse{Success: true, Data: entries})
}
