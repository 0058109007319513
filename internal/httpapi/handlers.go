// Package httpapi exposes the run trigger, a health probe and the run history over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"sisu-notifier/internal/models"
	"sisu-notifier/internal/pipeline"
	"sisu-notifier/internal/store"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// RunLister reads the run journal.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (*store.Run, error)
}

// Deps are the collaborators of the HTTP handlers. Runs may be nil when the
// journal is disabled.
type Deps struct {
	Runner  Runner
	Runs    RunLister
	Logger  zerolog.Logger
	Version string
	// Upstream reports the SISU circuit state for /health. Optional.
	Upstream func() string
}

type cronResponse struct {
	Success           bool                  `json:"success"`
	ClientsChecked    int                   `json:"clientsChecked"`
	NotificationsSent int                   `json:"notificationsSent"`
	Matches           []models.ClosingMatch `json:"matches"`
	Error             string                `json:"error,omitempty"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Upstream string `json:"upstream,omitempty"`
	Time     string `json:"time"`
}

type runsResponse struct {
	Runs []store.Run `json:"runs"`
}

// NewRouter builds the HTTP handler with request id, panic recovery and access logging.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	cron := cronHandler(d.Runner)
	mux.HandleFunc("GET /api/cron", cron)
	mux.HandleFunc("POST /api/cron", cron)
	mux.HandleFunc("GET /health", healthHandler(d.Version, d.Upstream))
	mux.HandleFunc("GET /api/runs", listRunsHandler(d.Runs))
	mux.HandleFunc("GET /api/runs/{id}", getRunHandler(d.Runs))

	logger := d.Logger.With().Str("component", "httpapi").Logger()
	return Chain(mux, RequestID, Recover(logger), AccessLog(logger))
}

// cronHandler runs the pipeline synchronously on the request goroutine.
func cronHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := runner.Run(r.Context())

		matches := res.Matches
		if matches == nil {
			matches = []models.ClosingMatch{}
		}
		body := cronResponse{
			Success:           err == nil,
			ClientsChecked:    res.ClientsChecked,
			NotificationsSent: res.NotificationsSent,
			Matches:           matches,
		}
		if err != nil {
			body.Error = err.Error()
			WriteJSON(w, http.StatusInternalServerError, body)
			return
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

func healthHandler(version string, upstream func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := healthResponse{
			Status:  "ok",
			Version: version,
			Time:    time.Now().UTC().Format(time.RFC3339),
		}
		if upstream != nil {
			body.Upstream = upstream()
		}
		WriteJSON(w, http.StatusOK, body)
	}
}

func listRunsHandler(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			WriteError(w, r, http.StatusNotFound, "journal_disabled", "run journal is disabled")
			return
		}

		limit := store.DefaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
				return
			}
			limit = n
		}

		list, err := runs.ListRuns(r.Context(), limit)
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "journal_error", err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, runsResponse{Runs: list})
	}
}

func getRunHandler(runs RunLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			WriteError(w, r, http.StatusNotFound, "journal_disabled", "run journal is disabled")
			return
		}

		run, err := runs.GetRun(r.Context(), r.PathValue("id"))
		if err != nil {
			WriteError(w, r, http.StatusInternalServerError, "journal_error", err.Error())
			return
		}
		if run == nil {
			WriteError(w, r, http.StatusNotFound, "not_found", "run not found")
			return
		}
		WriteJSON(w, http.StatusOK, run)
	}
}
