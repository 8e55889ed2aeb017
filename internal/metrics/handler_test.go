package metrics

import (
	"testing"

	"arbflow/logger"
)

func TestRegisterMetricHandlerNil(t *testing.T) {
	if id := RegisterMetricHandler(nil); id != 0 {
		t.Fatalf("nil handler should return zero id, got %d", id)
	}
	// Unregistering the zero id must be a no-op.
	UnregisterMetricHandler(0)
}

func TestEmitMetricDispatchesToHandlers(t *testing.T) {
	var received []Metric
	id := RegisterMetricHandler(func(m Metric) {
		received = append(received, m)
	})
	defer UnregisterMetricHandler(id)

	EmitMetric(logger.GetLogger(), "scan_runner", "opportunities", 3, "gauge", logger.Fields{"scan_id": "abc"})

	if len(received) != 1 {
		t.Fatalf("expected 1 dispatched metric, got %d", len(received))
	}
	m := received[0]
	if m.Component != "scan_runner" || m.Name != "opportunities" {
		t.Errorf("unexpected metric identity: %#v", m)
	}
	if m.Value != 3 || m.Type != "gauge" {
		t.Errorf("unexpected metric payload: %#v", m)
	}
	if m.Fields["scan_id"] != "abc" {
		t.Errorf("fields not carried through: %#v", m.Fields)
	}
}

func TestEmitMetricIgnoresEmptyName(t *testing.T) {
	count := 0
	id := RegisterMetricHandler(func(Metric) { count++ })
	defer UnregisterMetricHandler(id)

	EmitMetric(nil, "component", "", 1, "counter", nil)
	if count != 0 {
		t.Fatalf("metric with empty name should not dispatch, got %d calls", count)
	}
}

func TestEmitMetricClonesFields(t *testing.T) {
	var captured Metric
	id := RegisterMetricHandler(func(m Metric) { captured = m })
	defer UnregisterMetricHandler(id)

	fields := logger.Fields{"key": "original"}
	EmitMetric(nil, "component", "name", 1, "", fields)
	fields["key"] = "mutated"

	if captured.Fields["key"] != "original" {
		t.Fatalf("handler should see a copy of the fields, got %v", captured.Fields["key"])
	}
	if captured.Type != "counter" {
		t.Errorf("empty metric type should default to counter, got %s", captured.Type)
	}
}

func TestUnregisterStopsDispatch(t *testing.T) {
	count := 0
	id := RegisterMetricHandler(func(Metric) { count++ })

	EmitMetric(nil, "component", "name", 1, "counter", nil)
	UnregisterMetricHandler(id)
	EmitMetric(nil, "component", "name", 2, "counter", nil)

	if count != 1 {
		t.Fatalf("expected exactly 1 dispatch, got %d", count)
	}
}
