package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jrkphani/heybo-engine/pkg/retry"
)

// NATSKVOptions configures the JetStream-backed store.
type NATSKVOptions struct {
	Bucket      string        // bucket name (default "heybo_sessions")
	Description string        // bucket description on creation
	Timeout     time.Duration // per-operation timeout (default 5s)
	History     uint8         // revisions retained per key (default 5)
}

// DefaultNATSKVOptions returns the production defaults.
func DefaultNATSKVOptions() NATSKVOptions {
	return NATSKVOptions{
		Bucket:      "heybo_sessions",
		Description: "HeyBo ordering sessions, cart backups and rating queues",
		Timeout:     5 * time.Second,
		History:     5,
	}
}

// NATSKV is a KV backed by a JetStream key-value bucket, for deployments
// where session state is shared across widget backends. Transient bucket
// failures are retried with short backoff; a persistent failure surfaces
// as ErrUnavailable so callers degrade to "absent".
type NATSKV struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
}

// NewNATSKV creates (or binds to) the configured bucket.
func NewNATSKV(ctx context.Context, js jetstream.JetStream, opts NATSKVOptions) (*NATSKV, error) {
	if opts.Bucket == "" {
		opts.Bucket = "heybo_sessions"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.History == 0 {
		opts.History = 5
	}

	bucket, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      opts.Bucket,
		Description: opts.Description,
		History:     opts.History,
	})
	if err != nil {
		return nil, fmt.Errorf("natskv: create bucket %s: %w", opts.Bucket, err)
	}

	return &NATSKV{bucket: bucket, timeout: opts.Timeout}, nil
}

func (n *NATSKV) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, n.timeout)
}

// Get reads key from the bucket.
func (n *NATSKV) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	entry, err := n.bucket.Get(ctx, sanitizeKey(key))
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	return string(entry.Value()), true, nil
}

// Set writes key with last-writer-wins semantics, retrying transient
// bucket failures.
func (n *NATSKV) Set(ctx context.Context, key, value string) error {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	err := retry.Do(ctx, retry.Storage(), func() error {
		_, putErr := n.bucket.Put(ctx, sanitizeKey(key), []byte(value))
		return putErr
	})
	if err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// Remove deletes key. Deleting an absent key is a no-op.
func (n *NATSKV) Remove(ctx context.Context, key string) error {
	ctx, cancel := n.withTimeout(ctx)
	defer cancel()

	if err := n.bucket.Delete(ctx, sanitizeKey(key)); err != nil {
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// sanitizeKey maps engine keys onto the NATS KV key charset. Engine keys
// use '_' and '-' freely; only '/' separators need rewriting.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, "/", ".")
}

// isNotFound checks whether err indicates a missing key rather than an
// unreachable bucket.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "key not found") ||
		strings.Contains(err.Error(), "10037") {
		return true
	}
	return false
}
