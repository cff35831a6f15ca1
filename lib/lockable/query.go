package lockable

import (
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
)

// Info describes the lock of a record as seen by a principal
type Info struct {
	Status   Status           `json:"status"`
	LockedBy record.Principal `json:"locked_by,omitempty"`
	LockedAt time.Time        `json:"locked_at"`
	// SecondsRemaining until expiration, negative once expired, 0 without a lock
	SecondsRemaining int64 `json:"seconds_remaining"`
	// Applies is true if the lock blocks the principal
	Applies bool `json:"applies"`
	// LockedBySelf is true if the principal is the stored holder, expired or not
	LockedBySelf bool `json:"locked_by_self"`
	// Warn is true if the principal holds a lock older than the warning interval
	Warn bool `json:"warn"`
}

// Describe computes the Info of a lock state. p may be empty.
func Describe(state record.LockState, p record.Principal, now time.Time, cfg IConfig) Info {
	interval := cfg.ExpirationInterval()
	info := Info{
		Status:           ComputeStatus(state, now, interval),
		LockedBy:         state.LockedBy,
		LockedAt:         state.LockedAt,
		SecondsRemaining: SecondsRemaining(state, now, interval),
		Applies:          LockApplies(state, p, now, interval),
		LockedBySelf:     IsLockedBy(state, p),
	}
	info.Warn = info.LockedBySelf && info.Status != StatusUnlocked && now.Sub(state.LockedAt) >= cfg.WarningInterval()
	return info
}

func (m *Manager) Inspect(rec *record.Record, p record.Principal) (Info, error) {
	if rec == nil {
		return Info{}, errNilRecord
	}
	if !p.IsZero() {
		id, err := m.resolve(p)
		if err != nil {
			return Info{}, err
		}
		p = id
	}
	if err := m.refresh(rec); err != nil {
		return Info{}, err
	}
	return Describe(rec.Lock, p, m.clock.Now(), m.config), nil
}

func (m *Manager) Locked() ([]record.Record, error) {
	return m.filter(true)
}

func (m *Manager) Unlocked() ([]record.Record, error) {
	return m.filter(false)
}

func (m *Manager) filter(locked bool) ([]record.Record, error) {
	recs, err := m.store.List()
	if err != nil {
		return nil, err
	}
	now, interval := m.now()
	out := make([]record.Record, 0, len(recs))
	for _, rec := range recs {
		if (ComputeStatus(rec.Lock, now, interval) != StatusUnlocked) == locked {
			out = append(out, rec)
		}
	}
	return out, nil
}
