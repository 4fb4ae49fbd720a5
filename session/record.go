package session

import (
	"time"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/menu"
)

// UserType classifies who owns a session.
type UserType string

const (
	UserRegistered      UserType = "registered"
	UserGuest           UserType = "guest"
	UserUnauthenticated UserType = "unauthenticated"
)

func (u UserType) valid() bool {
	switch u {
	case UserRegistered, UserGuest, UserUnauthenticated:
		return true
	}
	return false
}

// User identifies the party requesting a session. ID must be empty for
// unauthenticated users.
type User struct {
	ID   string
	Type UserType
}

// SelectionEvent is one entry in the session's append-only audit trail
// of user choices.
type SelectionEvent struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`    // e.g. "ingredient-added", "location-selected"
	Subject string    `json:"subject"` // the id the event refers to
}

// Record is the persisted state of one ordering session.
type Record struct {
	SessionID      string           `json:"sessionId"`
	UserID         string           `json:"userId,omitempty"`
	UserType       UserType         `json:"userType"`
	DeviceID       string           `json:"deviceId"`
	CreatedAt      time.Time        `json:"createdAt"`
	LastActivityAt time.Time        `json:"lastActivityAt"`
	ExpiresAt      time.Time        `json:"expiresAt"`
	CurrentStep    string           `json:"currentStep"`
	Cart           []menu.CartItem  `json:"cart"`
	CartVersion    int              `json:"cartVersion"`
	Selections     []SelectionEvent `json:"selections"`
}

// Integrity verifies the record's required fields. A record failing
// this check is treated as corrupted, never partially used.
func (r *Record) Integrity() error {
	switch {
	case r.SessionID == "":
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "missing sessionId")
	case r.DeviceID == "":
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "missing deviceId")
	case r.CreatedAt.IsZero() || r.ExpiresAt.IsZero():
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "missing timestamps")
	case !r.ExpiresAt.After(r.CreatedAt):
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "expiresAt not after createdAt")
	case !r.UserType.valid():
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "unknown userType")
	case r.UserType == UserUnauthenticated && r.UserID != "":
		return errors.Wrap(errors.ErrSessionCorrupted, "session", "Integrity", "unauthenticated session carries a userId")
	}
	return nil
}

// Clone deep-copies the record so callers can never mutate the
// manager's state through a returned pointer.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Cart = make([]menu.CartItem, len(r.Cart))
	for i, item := range r.Cart {
		item.Bowl = item.Bowl.Clone()
		clone.Cart[i] = item
	}
	clone.Selections = append([]SelectionEvent(nil), r.Selections...)
	return &clone
}

// WarningType names the session warning families.
type WarningType string

const (
	WarningTimeout  WarningType = "timeout"
	WarningConflict WarningType = "conflict"
	WarningStorage  WarningType = "storage"
	WarningSync     WarningType = "sync"
)

// Warning is an ephemeral notice surfaced once per triggering
// condition, dismissed explicitly or superseded.
type Warning struct {
	Type          WarningType
	Message       string
	TimeRemaining time.Duration // zero when not applicable
	Actions       []errors.RecoveryAction
}

// CartBackup is the durable snapshot written when a session with a
// non-empty cart expires or is corrupted.
type CartBackup struct {
	SessionID string          `json:"sessionId"`
	SavedAt   time.Time       `json:"savedAt"`
	Items     []menu.CartItem `json:"items"`
}
