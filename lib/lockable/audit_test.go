package lockable

import (
	"bytes"
	"strings"
	"testing"

	"github.com/VictoriaMetrics/metrics"
)

func TestMetricsSink(t *testing.T) {
	set := metrics.NewSet()
	sink := NewMetricsSink(set)

	f := newFixture(t)
	f.mgr = NewLockManager(f.store, WithClock(f.clock), WithAuditSink(MultiSink{sink, f.sink, nil}))
	rec := f.create(t, "r1")
	if err := f.mgr.Acquire(rec, "A", true); err != nil {
		t.Fatal(err)
	}
	_ = f.mgr.Acquire(f.load(t, "r1"), "B", false)
	_ = f.mgr.Save(rec, map[string]string{"a": "b"})

	counts := map[EventKind]uint64{
		EventAcquireAttempt: 2,
		EventAcquired:       1,
		EventAcquireDenied:  1,
		EventWriteDenied:    1,
		EventReleased:       0,
	}
	for kind, want := range counts {
		if got := set.GetOrCreateCounter(EventMetricName(kind)).Get(); got != want {
			t.Errorf("%s = %d, want %d", kind, got, want)
		}
	}
	if len(f.sink.kinds()) != 5 {
		t.Errorf("multi sink did not forward all events: %v", f.sink.kinds())
	}

	var buf bytes.Buffer
	set.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `drl_lock_events_total{event="acquired"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", buf.String())
	}
}

func TestLoggerSinkHandlesAllKinds(t *testing.T) {
	sink := NewLoggerSink()
	for _, kind := range append(EventKinds, EventKind("unknown")) {
		sink.Record(Event{Kind: kind, RecordID: "r1", Principal: "A", Holder: "B"})
	}
}
