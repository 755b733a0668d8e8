package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/location"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the employee time-clock API with a bearer token.
type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
}

// NewClient validates baseURL and returns a client for it.
func NewClient(baseURL, token string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if token == "" {
		return nil, fmt.Errorf("backend token is required")
	}
	return &Client{
		baseURL: u,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FetchProfile loads the authenticated employee and normalizes the enrolled
// descriptor to dim values.
func (c *Client) FetchProfile(ctx context.Context, dim int) (*attendance.EmployeeProfile, error) {
	resp, err := doJSON[ProfileResponse](ctx, c, http.MethodGet, "api/employee/info", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching employee profile: %w", err)
	}

	data := resp.Data
	profile := &attendance.EmployeeProfile{
		ID:         strconv.FormatInt(data.ID, 10),
		Name:       data.Name,
		SchoolID:   strconv.FormatInt(data.SchoolID, 10),
		SchoolName: data.SchoolName,
	}
	if data.AnchorLat != nil && data.AnchorLng != nil {
		profile.Anchor = &location.Coordinate{Lat: *data.AnchorLat, Lng: *data.AnchorLng}
	}
	if len(data.EnrolledDescriptor) > 0 && string(data.EnrolledDescriptor) != "null" {
		desc, err := biometric.ParseDescriptor(data.EnrolledDescriptor, dim)
		if err != nil {
			return nil, fmt.Errorf("employee %d enrolled descriptor: %w", data.ID, err)
		}
		profile.Descriptor = desc
	}
	return profile, nil
}

// SubmitClockEvent stores one verified event.
func (c *Client) SubmitClockEvent(ctx context.Context, req ClockEventRequest) (*ClockEventResponse, error) {
	resp, err := doJSON[ClockEventResponse](ctx, c, http.MethodPost, "api/employee/clock", req)
	if err != nil {
		return nil, fmt.Errorf("submitting clock event: %w", err)
	}
	return resp, nil
}

// History returns the latest events of the employee, newest first.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	resp, err := doJSON[HistoryResponse](ctx, c, http.MethodGet, "api/employee/history", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return resp.Data, nil
}

// doJSON sends an optional JSON body and decodes a JSON response.
// Any non-2xx status is returned as *APIError.
func doJSON[T any](ctx context.Context, c *Client, method, endpoint string, body any) (*T, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(endpoint).String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	var result T
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw body.
func errorMessage(body []byte) string {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
