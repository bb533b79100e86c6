// Package api exposes the comet tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/comet-tracker/pkg/ephemeris"
	"github.com/Sternrassler/comet-tracker/pkg/logging"
	"github.com/Sternrassler/comet-tracker/pkg/metrics"
	"github.com/Sternrassler/comet-tracker/pkg/tracker"
	"github.com/go-playground/validator/v10"
)

// Tracker is the orchestration surface served by the API. *tracker.Service implements it.
type Tracker interface {
	Object() ephemeris.TrackedObject
	CurrentSnapshot(ctx context.Context) ephemeris.Snapshot
	HistoricalSeries(ctx context.Context, hours int) []ephemeris.Sample
	Status(ctx context.Context) tracker.StatusReport
}

// Pinger reports backing store reachability for /ready. cache.Store implements it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	// Prefix is prepended to the comet routes and the info route (e.g. "/api").
	Prefix string

	// ReadyTimeout bounds the store ping of /ready.
	ReadyTimeout time.Duration

	// Version is reported by the info route.
	Version string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Prefix:       "/api",
		ReadyTimeout: 2 * time.Second,
		Version:      "1.0.0",
	}
}

// Info is the body of the info route.
type Info struct {
	Message     string `json:"message"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// historyQuery is the validated query of the history route. The bounds match
// ephemeris.MinHistoryHours and ephemeris.MaxHistoryHours.
type historyQuery struct {
	Hours int `validate:"min=1,max=168"`
}

// Server routes HTTP requests to the tracker.
type Server struct {
	tracker  Tracker
	pinger   Pinger
	config   Config
	validate *validator.Validate
	handler  http.Handler
}

// NewServer creates a server. pinger may be nil, in which case /ready always succeeds.
func NewServer(t Tracker, pinger Pinger, cfg Config) (*Server, error) {
	if t == nil {
		return nil, fmt.Errorf("tracker is required")
	}
	prefix := strings.TrimRight(cfg.Prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("prefix must start with '/': %q", cfg.Prefix)
	}
	cfg.Prefix = prefix
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultConfig().ReadyTimeout
	}
	if cfg.Version == "" {
		cfg.Version = DefaultConfig().Version
	}

	s := &Server{
		tracker:  t,
		pinger:   pinger,
		config:   cfg,
		validate: validator.New(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/comet/{trackedId}/current", s.handleCurrent)
	mux.HandleFunc("GET "+prefix+"/comet/{trackedId}/history", s.handleHistory)
	mux.HandleFunc("GET "+prefix+"/comet/status", s.handleStatus)
	mux.HandleFunc("GET "+prefix+"/{$}", s.handleInfo)
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", metrics.Handler())

	s.handler = requestID(cors(instrument(recoverer(mux))))
	return s, nil
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if !s.known(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.CurrentSnapshot(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.known(w, r) {
		return
	}

	q := historyQuery{Hours: ephemeris.DefaultHistoryHours}
	if raw, ok := r.URL.Query()["hours"]; ok && len(raw) > 0 {
		hours, err := strconv.Atoi(strings.TrimSpace(raw[0]))
		if err != nil {
			writeValidation(w, raw[0], "int_parsing", "Input should be a valid integer, unable to parse string as an integer")
			return
		}
		q.Hours = hours
	}

	if err := s.validate.Struct(q); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		fe := verrs[0]
		raw := strconv.Itoa(q.Hours)
		switch fe.Tag() {
		case "min":
			writeValidation(w, raw, "greater_than_equal", "Input should be greater than or equal to "+fe.Param())
		case "max":
			writeValidation(w, raw, "less_than_equal", "Input should be less than or equal to "+fe.Param())
		default:
			writeValidation(w, raw, fe.Tag(), fe.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, s.tracker.HistoricalSeries(r.Context(), q.Hours))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Status(r.Context()))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Info{
		Message:     "Comet Tracker API",
		Version:     s.config.Version,
		Description: "Real-time " + s.tracker.Object().Name + " comet tracking using NASA JPL Horizons data",
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.ReadyTimeout)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn().
				Str("component", "api").
				Err(err).
				Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "Cache store unreachable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "READY")
}

// known writes a 404 and returns false when the path names another object.
func (s *Server) known(w http.ResponseWriter, r *http.Request) bool {
	id := r.PathValue("trackedId")
	if s.tracker.Object().Matches(id) {
		return true
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown tracked object %q", id))
	return false
}

// errorBody is the error shape of every non-validation failure.
type errorBody struct {
	Detail string `json:"detail"`
}

// validationIssue is one entry of a 422 response.
type validationIssue struct {
	Loc   []string `json:"loc"`
	Msg   string   `json:"msg"`
	Type  string   `json:"type"`
	Input string   `json:"input"`
}

type validationBody struct {
	Detail []validationIssue `json:"detail"`
}

func writeValidation(w http.ResponseWriter, input, typ, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, validationBody{
		Detail: []validationIssue{{
			Loc:   []string{"query", "hours"},
			Msg:   msg,
			Type:  typ,
			Input: input,
		}},
	})
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := logging.NewLogger("api")
		logger.Warn().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
