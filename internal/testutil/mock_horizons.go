// Package testutil provides testing utilities for the comet tracker.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock Horizons response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockHorizons is a configurable mock Horizons API server.
type MockHorizons struct {
	server *httptest.Server
	mu     sync.RWMutex
	resp   MockResponse
	probe  *MockResponse

	// Tracking
	RequestCount int
	ProbeCount   int
	LastQuery    url.Values
}

// NewMockHorizons creates a mock server answering every ephemeris request with
// a one-row ephemeris block until configured otherwise.
func NewMockHorizons() *MockHorizons {
	mock := &MockHorizons{
		resp: NewEphemerisResponse(EphemerisText(SampleRows(time.Now().UTC(), time.Minute, 1)...)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		isProbe := r.URL.Query().Get("COMMAND") == ""

		mock.mu.Lock()
		if isProbe {
			mock.ProbeCount++
		} else {
			mock.RequestCount++
			mock.LastQuery = r.URL.Query()
		}
		resp := mock.resp
		if isProbe && mock.probe != nil {
			resp = *mock.probe
		}
		mock.mu.Unlock()

		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockHorizons) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockHorizons) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockHorizons) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ProbeCount = 0
	m.LastQuery = nil
}

// SetResponse configures the response for ephemeris requests (and probes,
// unless SetProbeResponse was called).
func (m *MockHorizons) SetResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resp = resp
}

// SetProbeResponse configures a separate response for reachability probes.
func (m *MockHorizons) SetProbeResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probe = &resp
}

// GetRequestCount returns the number of ephemeris requests served.
func (m *MockHorizons) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetProbeCount returns the number of probe requests served.
func (m *MockHorizons) GetProbeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ProbeCount
}

// GetLastQuery returns the query parameters of the last ephemeris request.
func (m *MockHorizons) GetLastQuery() url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastQuery
}

// NewEphemerisResponse creates a 200 OK response with the given text body.
func NewEphemerisResponse(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusServiceUnavailable, Body: "Service Unavailable"}
}

// NewSlowResponse creates a response delayed by d.
func NewSlowResponse(body string, d time.Duration) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body, Delay: d}
}

// EphemerisText wraps rows in a Horizons-style text response.
func EphemerisText(rows ...string) string {
	var b strings.Builder
	b.WriteString("API VERSION: 1.2\nAPI SOURCE: NASA/JPL Horizons API\n\n")
	b.WriteString("*******************************************************************************\n")
	b.WriteString("Target body name: ATLAS (C/2025 N1)             {source: JPL#27}\n")
	b.WriteString("Center body name: Earth (399)                    {source: DE441}\n")
	b.WriteString("*******************************************************************************\n")
	b.WriteString(" Date__(UT)__HR:MN     R.A._____(ICRF)_____DEC    T-mag   N-mag  r        rdot     delta      deldot   S-O-T /r    S-T-O\n")
	b.WriteString("*******************************************************************************\n")
	b.WriteString("$$SOE\n")
	for _, row := range rows {
		b.WriteString(row)
		b.WriteString("\n")
	}
	b.WriteString("$$EOE\n")
	b.WriteString("*******************************************************************************\n")
	return b.String()
}

// EmptyEphemerisText returns a response with markers but no rows.
func EmptyEphemerisText() string {
	return EphemerisText()
}

// FormatRow renders one ephemeris row in Horizons observer-table layout.
func FormatRow(t time.Time, ra, dec string, tmag, nmag, r, rdot, delta, deldot float64) string {
	return fmt.Sprintf(" %s     %s %s   %6.3f  %6.3f %14.10f %10.7f %16.12f %11.7f  %8.4f /L  %7.4f",
		t.UTC().Format("2006-Jan-02 15:04"), ra, dec, tmag, nmag, r, rdot, delta, deldot, 35.1234, 15.4321)
}

// SampleRows generates n rows starting at start, spaced by step, with
// deterministic values.
func SampleRows(start time.Time, step time.Duration, n int) []string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ts := start.Add(time.Duration(i) * step)
		rows = append(rows, FormatRow(ts,
			fmt.Sprintf("13 %02d %05.2f", 19+i%40, 21.49),
			fmt.Sprintf("-05 %02d %04.1f", 28+i%30, 43.9),
			12.345+float64(i)*0.001,
			16.789,
			1.4567891234+float64(i)*0.0001,
			-20.1234567,
			2.456789123456+float64(i)*0.0001,
			-12.3456789,
		))
	}
	return rows
}
