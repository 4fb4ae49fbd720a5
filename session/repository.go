package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/jrkphani/heybo-engine/storage"
)

// Store keys and record schema versions. Bumping a schema version
// invalidates existing records, which the engine treats as corruption
// and clears rather than migrating in place.
const (
	keySession    = "session"
	keyDeviceID   = "device_id"
	backupPrefix  = "cart_backup_"
	sessionSchema = 1
	backupSchema  = 1
)

// Repository is the typed persistence layer over the raw key-value
// store. It knows key layout and schema versions, nothing about
// lifecycle policy.
type Repository struct {
	kv storage.KV
}

// NewRepository wraps kv in the session key layout.
func NewRepository(kv storage.KV) *Repository {
	return &Repository{kv: kv}
}

// LoadSession reads the current session record.
//
// Absent keys and read failures return (nil, nil); undecodable or
// version-mismatched records return a corruption error.
func (r *Repository) LoadSession(ctx context.Context) (*Record, error) {
	var rec Record
	found, err := storage.GetRecord(ctx, r.kv, keySession, sessionSchema, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &rec, nil
}

// SaveSession writes rec as the current session record.
func (r *Repository) SaveSession(ctx context.Context, rec *Record) error {
	return storage.PutRecord(ctx, r.kv, keySession, sessionSchema, rec)
}

// ClearSession removes the current session record.
func (r *Repository) ClearSession(ctx context.Context) error {
	return r.kv.Remove(ctx, keySession)
}

// SaveCartBackup durably snapshots a dying session's cart under its own
// key so it survives the session record being cleared.
func (r *Repository) SaveCartBackup(ctx context.Context, backup CartBackup) error {
	return storage.PutRecord(ctx, r.kv, backupPrefix+backup.SessionID, backupSchema, backup)
}

// LoadCartBackup reads the backup written for sessionID, if any.
func (r *Repository) LoadCartBackup(ctx context.Context, sessionID string) (*CartBackup, error) {
	var backup CartBackup
	found, err := storage.GetRecord(ctx, r.kv, backupPrefix+sessionID, backupSchema, &backup)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &backup, nil
}

// RemoveCartBackup deletes the backup for sessionID, used after a
// successful restore.
func (r *Repository) RemoveCartBackup(ctx context.Context, sessionID string) error {
	return r.kv.Remove(ctx, backupPrefix+sessionID)
}

// DeviceID returns the stable per-device identifier, minting and
// persisting one on first use.
func (r *Repository) DeviceID(ctx context.Context) (string, error) {
	id, found, err := r.kv.Get(ctx, keyDeviceID)
	if err == nil && found && id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := r.kv.Set(ctx, keyDeviceID, id); err != nil {
		// Unpersisted ids still identify the device for this run.
		return id, err
	}
	return id, nil
}
