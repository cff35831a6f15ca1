package lockable

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dRL/lib/principal"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockable")

// DefaultMaxAttempts bounds how often a transition is re-decided after its condition failed
const DefaultMaxAttempts = 4

// Manager implements ILockManager on top of a store.IStore.
// It keeps no state between calls, all atomicity comes from the conditional update of the store.
type Manager struct {
	store       store.IStore
	resolver    principal.IResolver
	config      IConfig
	clock       Clock
	audit       IAuditSink
	maxAttempts int
}

// Option configures a Manager
type Option func(*Manager)

// WithResolver sets the principal resolver (default principal.AnyResolver)
func WithResolver(r principal.IResolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithConfig sets the interval configuration (default StaticConfig{})
func WithConfig(c IConfig) Option {
	return func(m *Manager) { m.config = c }
}

// WithClock sets the clock (default SystemClock)
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithAuditSink sets the sink receiving lock events (default: a LoggerSink)
func WithAuditSink(s IAuditSink) Option {
	return func(m *Manager) {
		if s == nil {
			s = nopSink{}
		}
		m.audit = s
	}
}

// WithMaxAttempts sets how often a transition is tried when its condition keeps failing
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// NewLockManager creates a lock manager operating on the records of s
func NewLockManager(s store.IStore, opts ...Option) *Manager {
	m := &Manager{
		store:       s,
		resolver:    principal.AnyResolver{},
		config:      StaticConfig{},
		clock:       SystemClock{},
		audit:       NewLoggerSink(),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// --------------------------------------------------------------------------
// Transitions (docu see lockable/interface.go)
// --------------------------------------------------------------------------

func (m *Manager) Acquire(rec *record.Record, p record.Principal, hard bool) error {
	if rec == nil {
		return errNilRecord
	}
	id, err := m.resolve(p)
	if err != nil {
		return err
	}
	m.emit(EventAcquireAttempt, rec, id, hard)

	reloaded := false
	for attempt := 1; ; attempt++ {
		now := m.clock.Now()
		if LockApplies(rec.Lock, id, now, m.config.ExpirationInterval()) {
			// the handle may show a lock that is gone by now, deny only on the stored state
			if !reloaded {
				if err := m.refresh(rec); err != nil {
					return err
				}
				reloaded = true
				attempt--
				continue
			}
			m.emit(EventAcquireDenied, rec, id, hard)
			return fmt.Errorf("%w: record %q is locked by %q", ErrLockConflict, rec.ID, rec.Lock.LockedBy)
		}

		observed := rec.Lock
		next := record.NewLock(now, id, hard)
		assign := record.Assignment{Lock: &next}
		updated, err := m.store.Update(rec.ID, record.Condition{Lock: &observed}, assign)
		if err == nil {
			assign.Mirror(rec, updated)
			m.emit(EventAcquired, rec, id, hard)
			return nil
		}
		if err := m.retry(rec, err, attempt); err != nil {
			return err
		}
	}
}

func (m *Manager) Release(rec *record.Record) error {
	if rec == nil {
		return errNilRecord
	}
	assign := record.Assignment{Lock: &record.LockState{}}
	updated, err := m.store.Update(rec.ID, record.Condition{}, assign)
	if err != nil {
		return err
	}
	holder := rec.Lock.LockedBy
	assign.Mirror(rec, updated)
	m.audit.Record(Event{Kind: EventReleased, RecordID: rec.ID, Holder: holder, At: m.clock.Now()})
	return nil
}

func (m *Manager) ReleaseFor(rec *record.Record, p record.Principal) error {
	if rec == nil {
		return errNilRecord
	}
	id, err := m.resolve(p)
	if err != nil {
		return err
	}
	if err := m.refresh(rec); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		if !IsLockedBy(rec.Lock, id) {
			m.emit(EventReleaseDenied, rec, id, false)
			if !rec.Lock.IsSet() {
				return fmt.Errorf("%w: record %q is not locked", ErrLockConflict, rec.ID)
			}
			return fmt.Errorf("%w: record %q is locked by %q, not by %q", ErrLockConflict, rec.ID, rec.Lock.LockedBy, id)
		}

		observed := rec.Lock
		assign := record.Assignment{Lock: &record.LockState{}}
		updated, err := m.store.Update(rec.ID, record.Condition{Lock: &observed}, assign)
		if err == nil {
			assign.Mirror(rec, updated)
			m.audit.Record(Event{Kind: EventReleased, RecordID: rec.ID, Principal: id, Holder: id, At: m.clock.Now()})
			return nil
		}
		if err := m.retry(rec, err, attempt); err != nil {
			return err
		}
	}
}

func (m *Manager) Save(rec *record.Record, fields map[string]string) error {
	if rec == nil {
		return errNilRecord
	}
	if fields == nil {
		fields = rec.Fields
		if fields == nil {
			fields = map[string]string{}
		}
	}

	for attempt := 1; ; attempt++ {
		if err := m.Guard(rec); err != nil {
			m.emit(EventWriteDenied, rec, "", rec.Lock.HardLock)
			return err
		}

		observed := rec.Lock
		assign := record.Assignment{Fields: fields, ModifiedAt: m.clock.Now()}
		updated, err := m.store.Update(rec.ID, record.Condition{Lock: &observed}, assign)
		if err == nil {
			assign.Mirror(rec, updated)
			return nil
		}
		if err := m.retry(rec, err, attempt); err != nil {
			return err
		}
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (m *Manager) resolve(p record.Principal) (record.Principal, error) {
	id, err := m.resolver.Resolve(p)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPrincipal, p, err)
	}
	return id, nil
}

// retry decides whether a failed update is tried again. It returns nil after reloading the
// handle if the condition failed and attempts are left, otherwise the error to return.
func (m *Manager) retry(rec *record.Record, err error, attempt int) error {
	if !store.IsConditionFailed(err) {
		return err
	}
	if attempt >= m.maxAttempts {
		log.Warningf("giving up on %s after %d attempts: %v", rec.ID, attempt, err)
		return err
	}
	log.Debugf("lock fields of %s changed concurrently, reloading (attempt %d)", rec.ID, attempt)
	return m.refresh(rec)
}

// refresh reloads the lock fields and the modification time of the handle from storage.
// Fields of the handle are kept, they may carry unsaved edits of the caller.
func (m *Manager) refresh(rec *record.Record) error {
	stored, loaded, err := m.store.Get(rec.ID)
	if err != nil {
		return err
	}
	if !loaded {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("record %q not found", rec.ID))
	}
	rec.Lock = stored.Lock
	rec.ModifiedAt = stored.ModifiedAt
	return nil
}

func (m *Manager) emit(kind EventKind, rec *record.Record, p record.Principal, hard bool) {
	m.audit.Record(Event{
		Kind:      kind,
		RecordID:  rec.ID,
		Principal: p,
		Holder:    rec.Lock.LockedBy,
		Hard:      hard,
		At:        m.clock.Now(),
	})
}

// now is used by the queries, one reading per call
func (m *Manager) now() (time.Time, time.Duration) {
	return m.clock.Now(), m.config.ExpirationInterval()
}
