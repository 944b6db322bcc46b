package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestSetConnectorBound(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetConnectorBound("conn1", true)
	if v := gaugeValue(t, m.ConnectorState.WithLabelValues("conn1")); v != 1 {
		t.Errorf("bound gauge = %v, want 1", v)
	}

	m.SetConnectorBound("conn1", false)
	if v := gaugeValue(t, m.ConnectorState.WithLabelValues("conn1")); v != 0 {
		t.Errorf("bound gauge = %v, want 0", v)
	}
}

func TestNewGathersNoSamplesBeforeObservation(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 0 {
		t.Fatalf("expected no samples before any observation, got %d families", len(families))
	}
}
