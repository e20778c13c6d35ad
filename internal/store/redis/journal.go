package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/together/internal/domain"
)

// Journal stores journal entries as JSON documents keyed by entry id
type Journal struct {
	*Store
}

// List retrieves all entries
func (j *Journal) List(ctx context.Context) ([]domain.Entry, error) {
	ids, err := j.client.SMembers(ctx, KeyAllEntries).Result()
	if err != nil {
		return nil, domain.Unavailable("redis", fmt.Errorf("failed to get entry IDs: %w", err))
	}

	entries := make([]domain.Entry, 0, len(ids))
	if len(ids) == 0 {
		return entries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = EntryKey(id)
	}

	values, err := j.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.Unavailable("redis", fmt.Errorf("failed to get entries: %w", err))
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Set member without a document; skip it
			continue
		}
		var e domain.Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Get retrieves an entry by its application id
func (j *Journal) Get(ctx context.Context, id string) (domain.Entry, error) {
	data, err := j.client.Get(ctx, EntryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
		}
		return domain.Entry{}, domain.Unavailable("redis", fmt.Errorf("failed to get entry: %w", err))
	}

	var e domain.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return domain.Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, nil
}

// Insert stores a new entry; an existing id is an error
func (j *Journal) Insert(ctx context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	// Document and index go in one transaction so a listed id always has a
	// document and a stored document is always listed.
	var created *redis.BoolCmd
	_, err = j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, EntryKey(e.ID), data, 0)
		pipe.SAdd(ctx, KeyAllEntries, e.ID)
		return nil
	})
	if err != nil {
		return domain.Unavailable("redis", fmt.Errorf("failed to save entry: %w", err))
	}
	if !created.Val() {
		return fmt.Errorf("entry %s already exists", e.ID)
	}
	return nil
}

// Replace overwrites an existing entry
func (j *Journal) Replace(ctx context.Context, e domain.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	updated, err := j.client.SetXX(ctx, EntryKey(e.ID), data, 0).Result()
	if err != nil {
		return domain.Unavailable("redis", fmt.Errorf("failed to update entry: %w", err))
	}
	if !updated {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes an entry
func (j *Journal) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, EntryKey(id))
		pipe.SRem(ctx, KeyAllEntries, id)
		return nil
	})
	if err != nil {
		return domain.Unavailable("redis", fmt.Errorf("failed to delete entry: %w", err))
	}

	if deleted.Val() == 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
