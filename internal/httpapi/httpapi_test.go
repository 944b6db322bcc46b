package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/relaysms/smppgw/internal/gwconfig"
	"github.com/relaysms/smppgw/internal/gwlog"
	"github.com/relaysms/smppgw/internal/metrics"
	"github.com/relaysms/smppgw/internal/mtpipeline"
	"github.com/relaysms/smppgw/internal/queue"
	"github.com/relaysms/smppgw/internal/route"

	"github.com/prometheus/client_golang/prometheus"
)

type fakeQueue struct{}

func (fakeQueue) Publish(context.Context, string, []byte, string) error { return nil }
func (fakeQueue) Subscribe(context.Context, string, int, func(queue.Message)) error {
	return nil
}
func (fakeQueue) Close() error { return nil }

func newTestLogger() *gwlog.Logger {
	return gwlog.New(zap.NewNop(), gwlog.LevelDebug)
}

func newAPI(t *testing.T, withRoute bool) *API {
	t.Helper()
	status := route.NewConnectorStatus([]string{"conn1"})
	status.Update("conn1", "BOUND_TRX")

	var routes []*route.Route
	if withRoute {
		routes = append(routes, &route.Route{Priority: 1, Type: route.TypeDefault, Targets: []string{"conn1"}})
	}
	table := route.NewTable(routes)

	p := mtpipeline.New(table, status, map[string]gwconfig.ConnectorConfig{
		"conn1": {Name: "conn1"},
	}, nil, fakeQueue{}, "", "", newTestLogger())

	return &API{
		Pipeline: p,
		Status:   status,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Logger:   newTestLogger(),
	}
}

func TestHandleSendSuccess(t *testing.T) {
	h := NewHandler(newAPI(t, true))
	req := httptest.NewRequest(http.MethodGet, "/send?to=1234&username=u&content=hi", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if want := `Success "`; !strings.HasPrefix(w.Body.String(), want) {
		t.Fatalf("body = %q, want prefix %q", w.Body.String(), want)
	}
}

func TestHandleSendNoRoute(t *testing.T) {
	h := NewHandler(newAPI(t, false))
	req := httptest.NewRequest(http.MethodGet, "/send?to=1234&username=u&content=hi", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, want 412", w.Code)
	}
	if want := `Error "No route found"`; w.Body.String() != want {
		t.Fatalf("body = %q, want %q", w.Body.String(), want)
	}
}

func TestHandleSendValidationError(t *testing.T) {
	h := NewHandler(newAPI(t, true))
	req := httptest.NewRequest(http.MethodGet, "/send?username=u&content=hi", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if want := `Error "`; !strings.HasPrefix(w.Body.String(), want) {
		t.Fatalf("body = %q, want prefix %q", w.Body.String(), want)
	}
}

func TestHandleStatus(t *testing.T) {
	h := NewHandler(newAPI(t, true))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestHandleConnectors(t *testing.T) {
	h := NewHandler(newAPI(t, true))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/smpp/connectors", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "conn1") || !strings.Contains(body, "BOUND_TRX") {
		t.Fatalf("unexpected body: %s", body)
	}
}
