package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"arbflow/internal/metrics"
)

// metricStore keeps the most recent emitted metrics in a fixed-size ring.
// Once the ring is full the oldest entry is overwritten in place, so the
// history never reallocates under load.
type metricStore struct {
	mu   sync.RWMutex
	buf  []metrics.Metric
	next int
	full bool
}

func newMetricStore(limit int) *metricStore {
	if limit <= 0 {
		limit = 200
	}
	return &metricStore{buf: make([]metrics.Metric, limit)}
}

func (s *metricStore) handle(metric metrics.Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf[s.next] = metric
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.full = true
	}
}

// snapshot returns the retained metrics oldest first.
func (s *metricStore) snapshot() []metrics.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		return append([]metrics.Metric(nil), s.buf[:s.next]...)
	}
	out := make([]metrics.Metric, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}

// logRecord is one captured log entry as served by /api/logs. The exchange
// and scan id are pulled out of the structured fields so the API can filter
// and display pipeline activity without digging through the field map.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Exchange  string                 `json:"exchange,omitempty"`
	ScanID    string                 `json:"scan_id,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore retains recent log entries in a fixed-size ring. It implements
// the logrus Hook interface and attaches directly to the global logger;
// close disables capture without detaching (logrus has no RemoveHook).
type logStore struct {
	mu      sync.RWMutex
	buf     []logRecord
	next    int
	full    bool
	enabled atomic.Bool
}

func newLogStore(limit int) *logStore {
	if limit <= 0 {
		limit = 200
	}
	ls := &logStore{buf: make([]logRecord, limit)}
	ls.enabled.Store(true)
	return ls
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if !s.enabled.Load() {
		return nil
	}

	record := logRecord{
		Timestamp: entry.Time,
		Level:     entry.Level.String(),
		Component: stringField(entry.Data, "component"),
		Exchange:  stringField(entry.Data, "exchange"),
		ScanID:    stringField(entry.Data, "scan_id"),
		Message:   entry.Message,
		Fields:    flattenFields(entry.Data),
	}

	s.mu.Lock()
	s.buf[s.next] = record
	s.next++
	if s.next == len(s.buf) {
		s.next = 0
		s.full = true
	}
	s.mu.Unlock()
	return nil
}

func (s *logStore) snapshot() []logRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.full {
		return append([]logRecord(nil), s.buf[:s.next]...)
	}
	out := make([]logRecord, 0, len(s.buf))
	out = append(out, s.buf[s.next:]...)
	out = append(out, s.buf[:s.next]...)
	return out
}

func (s *logStore) close() {
	s.enabled.Store(false)
}

func stringField(data logrus.Fields, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

// flattenFields copies the remaining structured fields into a JSON-friendly
// map. Errors and Stringers (decimals, durations) are rendered as strings so
// the payload survives serialization.
func flattenFields(data logrus.Fields) map[string]interface{} {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch k {
		case "component", "exchange", "scan_id":
			continue
		}
		switch val := v.(type) {
		case error:
			out[k] = val.Error()
		case fmt.Stringer:
			out[k] = val.String()
		default:
			out[k] = val
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
