package rating

import (
	"context"
	"fmt"
	"time"

	"github.com/jrkphani/heybo-engine/errors"
	"github.com/jrkphani/heybo-engine/storage"
)

// Store keys and schema versions.
const (
	keyRatings    = "ratings"
	keyRetryQueue = "rating_retry_queue"
	keyUnrated    = "unrated_orders"
	ratingsSchema = 1
	retrySchema   = 1
	unratedSchema = 1
)

// Rating is one user rating of a completed order.
type Rating struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	OrderID   string    `json:"orderId"`
	Stars     int       `json:"stars"` // 1..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Validate checks the rating's structural invariants.
func (r Rating) Validate() error {
	if r.OrderID == "" {
		return errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("rating requires an orderId"), "rating", "Validate", "check orderId")
	}
	if r.Stars < 1 || r.Stars > 5 {
		return errors.WrapAs(errors.CategoryValidation,
			fmt.Errorf("stars %d outside 1..5", r.Stars), "rating", "Validate", "check stars")
	}
	return nil
}

// QueueEntry is one rating awaiting remote redelivery.
type QueueEntry struct {
	Rating     Rating `json:"rating"`
	RetryCount int    `json:"retryCount"`
}

// Store is the typed persistence layer for ratings: the append-only
// local log, the retry queue, and the unrated-order set.
type Store struct {
	kv storage.KV
}

// NewStore wraps kv in the rating key layout.
func NewStore(kv storage.KV) *Store {
	return &Store{kv: kv}
}

// Append adds r to the durable append-only log.
func (s *Store) Append(ctx context.Context, r Rating) error {
	ratings, err := s.All(ctx)
	if err != nil {
		return err
	}
	return storage.PutRecord(ctx, s.kv, keyRatings, ratingsSchema, append(ratings, r))
}

// All returns the local rating log, oldest first.
func (s *Store) All(ctx context.Context) ([]Rating, error) {
	var ratings []Rating
	if _, err := storage.GetRecord(ctx, s.kv, keyRatings, ratingsSchema, &ratings); err != nil {
		return nil, err
	}
	return ratings, nil
}

// Enqueue appends entry to the retry queue.
func (s *Store) Enqueue(ctx context.Context, entry QueueEntry) error {
	queue, err := s.Queue(ctx)
	if err != nil {
		return err
	}
	return storage.PutRecord(ctx, s.kv, keyRetryQueue, retrySchema, append(queue, entry))
}

// Queue returns the retry queue, oldest first.
func (s *Store) Queue(ctx context.Context) ([]QueueEntry, error) {
	var queue []QueueEntry
	if _, err := storage.GetRecord(ctx, s.kv, keyRetryQueue, retrySchema, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

// ReplaceQueue overwrites the retry queue wholesale, used by Flush.
func (s *Store) ReplaceQueue(ctx context.Context, queue []QueueEntry) error {
	if len(queue) == 0 {
		return s.kv.Remove(ctx, keyRetryQueue)
	}
	return storage.PutRecord(ctx, s.kv, keyRetryQueue, retrySchema, queue)
}

// MarkUnrated records that orderID awaits a rating.
func (s *Store) MarkUnrated(ctx context.Context, orderID string) error {
	orders, err := s.Unrated(ctx)
	if err != nil {
		return err
	}
	for _, id := range orders {
		if id == orderID {
			return nil
		}
	}
	return storage.PutRecord(ctx, s.kv, keyUnrated, unratedSchema, append(orders, orderID))
}

// ClearUnrated removes orderID from the unrated set.
func (s *Store) ClearUnrated(ctx context.Context, orderID string) error {
	orders, err := s.Unrated(ctx)
	if err != nil {
		return err
	}
	kept := orders[:0]
	for _, id := range orders {
		if id != orderID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return s.kv.Remove(ctx, keyUnrated)
	}
	return storage.PutRecord(ctx, s.kv, keyUnrated, unratedSchema, kept)
}

// Unrated returns the orders still awaiting a rating.
func (s *Store) Unrated(ctx context.Context) ([]string, error) {
	var orders []string
	if _, err := storage.GetRecord(ctx, s.kv, keyUnrated, unratedSchema, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
