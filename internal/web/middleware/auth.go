package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/kozaktomas/staff-clock/internal/database"
)

type contextKey string

const employeeContextKey contextKey = "employee"

// RequireEmployee is middleware that resolves the bearer token to an active
// employee and rejects the request otherwise.
func RequireEmployee(employees database.EmployeeReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}

			emp, err := employees.GetEmployeeByToken(r.Context(), token)
			if err != nil {
				log.Printf("auth: looking up employee: %v", err)
				writeError(w, http.StatusInternalServerError, `{"error": "internal error"}`)
				return
			}
			if emp == nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetEmployeeInContext(r.Context(), emp)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="staff-clock"`)
	writeError(w, http.StatusUnauthorized, `{"error": "unauthorized"}`)
}

func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body + "\n"))
}

// GetEmployeeFromContext retrieves the employee from the request context
func GetEmployeeFromContext(ctx context.Context) *database.Employee {
	emp, ok := ctx.Value(employeeContextKey).(*database.Employee)
	if !ok {
		return nil
	}
	return emp
}

// SetEmployeeInContext adds an employee to the context.
// This is primarily for testing - use RequireEmployee middleware in production.
func SetEmployeeInContext(ctx context.Context, emp *database.Employee) context.Context {
	return context.WithValue(ctx, employeeContextKey, emp)
}
