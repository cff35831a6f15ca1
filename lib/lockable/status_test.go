package lockable

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/dRL/lib/record"
)

const interval = 600 * time.Second

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		name  string
		state record.LockState
		now   time.Time
		want  Status
	}{
		{"absent", record.LockState{}, at(0), StatusUnlocked},
		{"fresh soft", lockAt(0, "A", false), at(0), StatusSoft},
		{"fresh hard", lockAt(0, "A", true), at(0), StatusHard},
		{"soft before expiry", lockAt(0, "A", false), at(599), StatusSoft},
		{"hard before expiry", lockAt(0, "A", true), at(599), StatusHard},
		{"exactly expired", lockAt(0, "A", false), at(600), StatusUnlocked},
		{"hard exactly expired", lockAt(0, "A", true), at(600), StatusUnlocked},
		{"long expired", lockAt(0, "A", true), at(3600), StatusUnlocked},
		{"lock from the future", lockAt(10, "A", false), at(0), StatusSoft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStatus(tt.state, tt.now, interval); got != tt.want {
				t.Errorf("ComputeStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSecondsRemaining(t *testing.T) {
	tests := []struct {
		name  string
		state record.LockState
		now   time.Time
		want  int64
	}{
		{"absent", record.LockState{}, at(100), 0},
		{"fresh", lockAt(0, "A", false), at(0), 600},
		{"half way", lockAt(0, "A", false), at(300), 300},
		{"sub second elapsed", lockAt(0, "A", false), at(300).Add(500 * time.Millisecond), 300},
		{"at expiry", lockAt(0, "A", false), at(600), 0},
		{"one second past", lockAt(0, "A", false), at(601), -1},
		{"long expired", lockAt(0, "A", true), at(1200), -600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecondsRemaining(tt.state, tt.now, interval); got != tt.want {
				t.Errorf("SecondsRemaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsLockedBy(t *testing.T) {
	state := lockAt(0, "A", false)
	if !IsLockedBy(state, "A") {
		t.Error("expected A to be the holder")
	}
	if IsLockedBy(state, "B") {
		t.Error("B must not be the holder")
	}
	if IsLockedBy(state, "") {
		t.Error("the empty principal must never be the holder")
	}
	if IsLockedBy(record.LockState{}, "") {
		t.Error("the empty principal must not hold an absent lock")
	}
	// holder identity matters regardless of expiration
	if !IsLockedBy(lockAt(-10000, "A", true), "A") {
		t.Error("expected A to be the holder of an expired lock")
	}
}

func TestLockApplies(t *testing.T) {
	tests := []struct {
		name  string
		state record.LockState
		p     record.Principal
		now   time.Time
		want  bool
	}{
		{"absent", record.LockState{}, "B", at(0), false},
		{"soft other", lockAt(0, "A", false), "B", at(10), true},
		{"hard other", lockAt(0, "A", true), "B", at(10), true},
		{"soft self", lockAt(0, "A", false), "A", at(10), false},
		{"hard self", lockAt(0, "A", true), "A", at(10), false},
		{"expired other", lockAt(0, "A", true), "B", at(600), false},
		{"anonymous", lockAt(0, "A", false), "", at(10), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LockApplies(tt.state, tt.p, tt.now, interval); got != tt.want {
				t.Errorf("LockApplies() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLockNeverAppliesToHolder(t *testing.T) {
	for _, hard := range []bool{false, true} {
		for offset := -5; offset <= 1300; offset += 37 {
			state := lockAt(0, "A", hard)
			if LockApplies(state, "A", at(offset), interval) {
				t.Fatalf("lock applies to its holder (hard=%v, t=%d)", hard, offset)
			}
		}
	}
}

func TestCheckWrite(t *testing.T) {
	if err := CheckWrite(record.LockState{}, at(0), interval); err != nil {
		t.Errorf("unlocked write failed: %v", err)
	}
	if err := CheckWrite(lockAt(0, "A", false), at(10), interval); err != nil {
		t.Errorf("soft lock blocked a write: %v", err)
	}
	if err := CheckWrite(lockAt(0, "A", true), at(10), interval); !errors.Is(err, ErrHardLockActive) {
		t.Errorf("expected ErrHardLockActive, got %v", err)
	}
	if err := CheckWrite(lockAt(0, "A", true), at(600), interval); err != nil {
		t.Errorf("expired hard lock blocked a write: %v", err)
	}
}

func TestStatusString(t *testing.T) {
	if StatusUnlocked.String() != "unlocked" || StatusSoft.String() != "soft" || StatusHard.String() != "hard" {
		t.Error("unexpected status names")
	}
	if Status(42).String() != "Status(42)" {
		t.Errorf("unexpected name for unknown status: %s", Status(42))
	}
}

func TestStaticConfigDefaults(t *testing.T) {
	var c StaticConfig
	if c.ExpirationInterval() != DefaultExpirationInterval {
		t.Errorf("expected default expiration, got %s", c.ExpirationInterval())
	}
	if c.WarningInterval() != DefaultWarningInterval {
		t.Errorf("expected default warning, got %s", c.WarningInterval())
	}
	c = StaticConfig{Expiration: time.Minute, Warning: 30 * time.Second}
	if c.ExpirationInterval() != time.Minute || c.WarningInterval() != 30*time.Second {
		t.Error("configured values not returned")
	}
}
