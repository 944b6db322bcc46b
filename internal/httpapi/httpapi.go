// Package httpapi implements the gateway's chi-routed HTTP front: the
// legacy GET /send endpoint (spec §4.5, §6), a liveness probe, the
// connector-status feed, and the prometheus /metrics endpoint. Grounded
// on chi usage throughout absmach-magistrala's */api/transport.go files,
// simplified to plain http.HandlerFunc handlers since the gateway has no
// go-kit Service/Endpoint layer to wrap.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/metrics"
	"github.com/relaysms/smppgw/internal/mtpipeline"
	"github.com/relaysms/smppgw/internal/route"
)

// API bundles the collaborators the HTTP front needs.
type API struct {
	Pipeline *mtpipeline.Pipeline
	Status   *route.ConnectorStatus
	Metrics  *metrics.Metrics
	Logger   *gwlog.Logger
}

// NewHandler builds the chi router (spec §6 "HTTP API").
func NewHandler(a *API) http.Handler {
	mux := chi.NewRouter()

	mux.Get("/send", a.withMetrics("send", a.handleSend))
	mux.Get("/api/v1/status", a.withMetrics("status", a.handleStatus))
	mux.Get("/api/v1/smpp/connectors", a.withMetrics("connectors", a.handleConnectors))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// withMetrics wraps h with request-count and latency recording, when a.Metrics
// is set (spec §5 "Observability").
func (a *API) withMetrics(route string, h http.HandlerFunc) http.HandlerFunc {
	if a.Metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		h(sw, r)
		a.Metrics.HTTPRequests.WithLabelValues(route, statusClass(sw.status)).Inc()
		a.Metrics.HTTPLatencySecs.WithLabelValues(route).Observe(time.Since(begin).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// handleSend implements GET /send (spec §4.5, §6): parse, pipeline
// dispatch, map errors to status codes.
func (a *API) handleSend(w http.ResponseWriter, r *http.Request) {
	req, err := mtpipeline.ParseRequest(r.URL.Query())
	if err != nil {
		var verr *mtpipeline.ValidationError
		if errors.As(err, &verr) {
			writeError(w, verr.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	reqID, err := a.Pipeline.Handle(r.Context(), req)
	if err != nil {
		var verr *mtpipeline.ValidationError
		var nerr *mtpipeline.NoRouteError
		switch {
		case errors.As(err, &verr):
			writeError(w, verr.Error(), http.StatusBadRequest)
		case errors.As(err, &nerr):
			writeError(w, nerr.Error(), http.StatusPreconditionFailed)
		default:
			a.Logger.ErrorF("httpapi: /send failed: %+v", err)
			writeError(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf("Success %q", reqID)))
}

// writeError writes an error response in spec §6's `Error "<reason>"`
// body format, mirroring the `Success "<reqID>"` format of the 200 path.
func writeError(w http.ResponseWriter, reason string, status int) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(fmt.Sprintf("Error %q", reason)))
}

// handleStatus implements GET /api/v1/status (spec §6 "liveness probe").
func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// handleConnectors implements GET /api/v1/smpp/connectors (spec §6
// "connector-status feed").
func (a *API) handleConnectors(w http.ResponseWriter, r *http.Request) {
	snapshot := a.Status.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		a.Logger.ErrorF("httpapi: encoding connectors response: %+v", err)
	}
}
