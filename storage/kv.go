package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jrkphani/heybo-engine/errors"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.ErrStoreUnavailable

// KV is the scoped key-value store consumed by the engine. Values are
// opaque strings; structured records go through PutRecord/GetRecord.
//
// Get returns found=false both for missing keys and for read failures;
// err distinguishes the two so callers can surface a storage warning
// while still treating the value as absent.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// envelope wraps every typed record written to the store. SchemaVersion
// mismatches and unparseable payloads are reported as corruption rather
// than being silently coerced.
type envelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SavedAt       time.Time       `json:"savedAt"`
	Payload       json.RawMessage `json:"payload"`
}

// PutRecord marshals payload into a versioned envelope and writes it
// under key.
func PutRecord(ctx context.Context, kv KV, key string, schemaVersion int, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "storage", "PutRecord", "marshal payload")
	}
	env := envelope{
		SchemaVersion: schemaVersion,
		SavedAt:       time.Now().UTC(),
		Payload:       raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "storage", "PutRecord", "marshal envelope")
	}
	if err := kv.Set(ctx, key, string(data)); err != nil {
		return errors.WrapAs(errors.CategoryNetwork, err, "storage", "PutRecord", fmt.Sprintf("write key %s", key))
	}
	return nil
}

// GetRecord reads the envelope under key, verifies its schema version,
// and unmarshals the payload into out.
//
// Returns (false, nil) when the key is absent or the store read failed,
// and ErrSessionCorrupted-wrapped errors when the stored bytes exist but
// cannot be trusted.
func GetRecord(ctx context.Context, kv KV, key string, schemaVersion int, out any) (bool, error) {
	value, found, err := kv.Get(ctx, key)
	if err != nil || !found {
		// Read failures degrade to absent.
		return false, nil
	}

	var env envelope
	if err := json.Unmarshal([]byte(value), &env); err != nil {
		return false, errors.WrapAs(errors.CategorySession,
			fmt.Errorf("%w: %v", errors.ErrSessionCorrupted, err),
			"storage", "GetRecord", fmt.Sprintf("decode envelope for %s", key))
	}
	if env.SchemaVersion != schemaVersion {
		return false, errors.WrapAs(errors.CategorySession,
			fmt.Errorf("%w: schema version %d, want %d", errors.ErrSessionCorrupted, env.SchemaVersion, schemaVersion),
			"storage", "GetRecord", fmt.Sprintf("check schema for %s", key))
	}
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return false, errors.WrapAs(errors.CategorySession,
			fmt.Errorf("%w: %v", errors.ErrSessionCorrupted, err),
			"storage", "GetRecord", fmt.Sprintf("decode payload for %s", key))
	}
	return true, nil
}
