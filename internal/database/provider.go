package database

import (
	"fmt"
	"sync"
)

var (
	providerMu             sync.RWMutex
	postgresEmployeeReader func() EmployeeReader
	postgresClockWriter    func() ClockEventWriter
	postgresInitialized    bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(employees func() EmployeeReader, events func() ClockEventWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()
	postgresEmployeeReader = employees
	postgresClockWriter = events
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return postgresInitialized
}

// GetEmployeeReader returns an EmployeeReader from the PostgreSQL backend
func GetEmployeeReader() (EmployeeReader, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresEmployeeReader == nil {
		return nil, fmt.Errorf("PostgreSQL employee reader not registered")
	}
	return postgresEmployeeReader(), nil
}

// GetClockEventWriter returns a ClockEventWriter from the PostgreSQL backend
func GetClockEventWriter() (ClockEventWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresClockWriter == nil {
		return nil, fmt.Errorf("PostgreSQL clock event writer not registered")
	}
	return postgresClockWriter(), nil
}
