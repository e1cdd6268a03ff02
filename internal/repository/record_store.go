package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"music-tutor/internal/metrics"
	"time"
)

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrVersionConflict = errors.New("record version conflict")
)

// Record is one versioned JSON blob stored under a fixed key.
type Record struct {
	Key       string
	Data      []byte
	Version   int64
	UpdatedAt string
}

// RecordStore persists versioned records. Put succeeds only when the stored
// version equals expectedVersion; zero means the record must not exist yet.
type RecordStore interface {
	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, key string, data []byte, expectedVersion int64) (int64, error)
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

const maxUpdateAttempts = 5

func ProfileKey(userID string) string  { return "user_profile_" + userID }
func ProgressKey(userID string) string { return "user_progress_" + userID }
func SettingsKey(userID string) string { return "user_settings_" + userID }

func getJSON[T any](ctx context.Context, store RecordStore, key string) (*T, int64, error) {
	rec, err := store.Get(ctx, key)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	var v T
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return &v, rec.Version, nil
}

// updateJSON runs a read-modify-write of one record as compare-and-swap,
// re-reading and re-applying mutate when another writer got there first.
func updateJSON[T any](ctx context.Context, store RecordStore, key string, initial func() *T, mutate func(*T) error) (*T, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(calculateBackoff(10*time.Millisecond, attempt)):
			}
		}

		current, version, err := getJSON[T](ctx, store, key)
		if err != nil {
			return nil, err
		}
		if current == nil {
			current = initial()
		}
		if err := mutate(current); err != nil {
			return nil, err
		}
		data, err := json.Marshal(current)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		_, err = store.Put(ctx, key, data, version)
		if errors.Is(err, ErrVersionConflict) {
			metrics.StoreConflicts.Inc()
			continue
		}
		if err != nil {
			return nil, err
		}
		return current, nil
	}
	return nil, fmt.Errorf("failed to update %s after %d attempts: %w", key, maxUpdateAttempts, ErrVersionConflict)
}
