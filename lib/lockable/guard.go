package lockable

import (
	"fmt"

	"github.com/ValentinKolb/dRL/lib/record"
)

// Guard checks whether rec may be written right now. It does not touch storage, the caller
// is responsible for a fresh handle. Save runs the same check against the stored state.
func (m *Manager) Guard(rec *record.Record) error {
	if rec == nil {
		return errNilRecord
	}
	if err := CheckWrite(rec.Lock, m.clock.Now(), m.config.ExpirationInterval()); err != nil {
		return fmt.Errorf("record %q: %w", rec.ID, err)
	}
	return nil
}
