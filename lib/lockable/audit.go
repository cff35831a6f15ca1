package lockable

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

// EventKind names an observable lock event
type EventKind string

const (
	EventAcquireAttempt EventKind = "acquire-attempt"
	EventAcquired       EventKind = "acquired"
	EventAcquireDenied  EventKind = "acquire-denied"
	EventReleased       EventKind = "released"
	EventReleaseDenied  EventKind = "release-denied"
	EventWriteDenied    EventKind = "write-denied"
)

// EventKinds lists all event kinds in a stable order
var EventKinds = []EventKind{
	EventAcquireAttempt, EventAcquired, EventAcquireDenied,
	EventReleased, EventReleaseDenied, EventWriteDenied,
}

// Event describes a single lock event. Principal is the caller, Holder the stored holder
// at the time of the event (empty if none).
type Event struct {
	Kind      EventKind
	RecordID  string
	Principal record.Principal
	Holder    record.Principal
	Hard      bool
	At        time.Time
}

// IAuditSink receives lock events. Sinks are purely observational and must not block.
type IAuditSink interface {
	Record(ev Event)
}

// --------------------------------------------------------------------------
// LoggerSink
// --------------------------------------------------------------------------

// LoggerSink writes events to a dragonboat logger
type LoggerSink struct {
	log logger.ILogger
}

// NewLoggerSink creates a sink writing to the "lockable" logger
func NewLoggerSink() *LoggerSink {
	return &LoggerSink{log: logger.GetLogger("lockable")}
}

func (s *LoggerSink) Record(ev Event) {
	switch ev.Kind {
	case EventAcquireAttempt:
		s.log.Infof("Attempting to initiate a lock for %s on %s (hard=%t)", ev.Principal, ev.RecordID, ev.Hard)
	case EventAcquired:
		s.log.Infof("Initiated a lock for %s on %s at %s", ev.Principal, ev.RecordID, ev.At.Format(time.RFC3339))
	case EventAcquireDenied:
		s.log.Infof("Lock on %s applies to %s, held by %s", ev.RecordID, ev.Principal, ev.Holder)
	case EventReleased:
		s.log.Infof("Lock on %s released", ev.RecordID)
	case EventReleaseDenied:
		s.log.Warningf("%s tried to release the lock on %s held by %s", ev.Principal, ev.RecordID, ev.Holder)
	case EventWriteDenied:
		s.log.Warningf("Write to %s denied, hard lock held by %s", ev.RecordID, ev.Holder)
	default:
		s.log.Debugf("lock event %s on %s", ev.Kind, ev.RecordID)
	}
}

// --------------------------------------------------------------------------
// MetricsSink
// --------------------------------------------------------------------------

// MetricsSink counts events in drl_lock_events_total{event="..."}
type MetricsSink struct {
	counters map[EventKind]*metrics.Counter
}

// NewMetricsSink registers the event counters in set. A nil set uses the global default set,
// which is what the /metrics endpoint of the http transport exposes.
func NewMetricsSink(set *metrics.Set) *MetricsSink {
	s := &MetricsSink{counters: make(map[EventKind]*metrics.Counter, len(EventKinds))}
	for _, kind := range EventKinds {
		name := EventMetricName(kind)
		if set == nil {
			s.counters[kind] = metrics.GetOrCreateCounter(name)
		} else {
			s.counters[kind] = set.GetOrCreateCounter(name)
		}
	}
	return s
}

// EventMetricName returns the metric name counting events of the given kind
func EventMetricName(kind EventKind) string {
	return fmt.Sprintf(`drl_lock_events_total{event=%q}`, string(kind))
}

func (s *MetricsSink) Record(ev Event) {
	if c, ok := s.counters[ev.Kind]; ok {
		c.Inc()
	}
}

// --------------------------------------------------------------------------
// MultiSink
// --------------------------------------------------------------------------

// MultiSink forwards every event to all of its sinks in order
type MultiSink []IAuditSink

func (m MultiSink) Record(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Record(ev)
		}
	}
}

type nopSink struct{}

func (nopSink) Record(Event) {}
