// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/staff-clock/internal/database"
)

// MockEmployeeReader is a mock implementation of database.EmployeeReader
type MockEmployeeReader struct {
	mu        sync.RWMutex
	employees map[string]*database.Employee

	// Error injection
	GetError error
}

// NewMockEmployeeReader creates a new mock employee reader
func NewMockEmployeeReader() *MockEmployeeReader {
	return &MockEmployeeReader{employees: make(map[string]*database.Employee)}
}

// AddEmployee registers emp under token
func (m *MockEmployeeReader) AddEmployee(token string, emp database.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[token] = &emp
}

// GetEmployeeByToken returns the employee for token, nil if unknown
func (m *MockEmployeeReader) GetEmployeeByToken(ctx context.Context, token string) (*database.Employee, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	emp, ok := m.employees[token]
	if !ok {
		return nil, nil
	}
	cp := *emp
	return &cp, nil
}

// MockClockEventStore is an in-memory database.ClockEventWriter
type MockClockEventStore struct {
	mu     sync.RWMutex
	events []database.StoredClockEvent
	nextID int64
	now    func() time.Time

	// Error injection
	SaveError  error
	ListError  error
	GetError   error
	SaveCalled int
}

// NewMockClockEventStore creates an empty store
func NewMockClockEventStore() *MockClockEventStore {
	return &MockClockEventStore{nextID: 1, now: time.Now}
}

// SaveClockEvent stores ev, returning the existing row for a repeated attempt
func (m *MockClockEventStore) SaveClockEvent(ctx context.Context, ev *database.StoredClockEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalled++
	if m.SaveError != nil {
		return false, m.SaveError
	}

	for _, existing := range m.events {
		if existing.AttemptID != ev.AttemptID {
			continue
		}
		if existing.EmployeeID != ev.EmployeeID {
			return false, database.ErrAttemptConflict
		}
		*ev = existing
		return false, nil
	}

	ev.ID = m.nextID
	m.nextID++
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	m.events = append(m.events, *ev)
	return true, nil
}

// GetClockEventByAttempt returns the event for attemptID, nil if none
func (m *MockClockEventStore) GetClockEventByAttempt(ctx context.Context, attemptID string) (*database.StoredClockEvent, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ev := range m.events {
		if ev.AttemptID == attemptID {
			return &ev, nil
		}
	}
	return nil, nil
}

// ListClockEvents returns events of employeeID, newest first, without photos
func (m *MockClockEventStore) ListClockEvents(ctx context.Context, employeeID int64, types []string, limit int) ([]database.StoredClockEvent, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []database.StoredClockEvent
	for _, ev := range m.events {
		if ev.EmployeeID != employeeID {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, ev.EventType) {
			continue
		}
		ev.Photo = nil
		result = append(result, ev)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].ID > result[j].ID
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Events returns a copy of every stored event, photos included
func (m *MockClockEventStore) Events() []database.StoredClockEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.events)
}
