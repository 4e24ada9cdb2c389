package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/tollgate/core"
	"github.com/layer-3/tollgate/ports"
)

// RedisRegistry is a Redis implementation of the Registry interface
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisRegistry creates a new Redis registry
func NewRedisRegistry(client *redis.Client) ports.Registry {
	return &RedisRegistry{
		client: client,
		prefix: "tollgate:registry:",
	}
}

func (r *RedisRegistry) key(domain, resource string) string {
	return r.prefix + domain + "|" + core.NormalizeResource(resource)
}

func (r *RedisRegistry) domainSet(domain string) string {
	return r.prefix + "domain:" + domain
}

// Lookup returns the entry registered under the (domain, resource) pair
func (r *RedisRegistry) Lookup(ctx context.Context, domain, resource string) (*core.ResourceEntry, error) {
	payload, err := r.client.Get(ctx, r.key(domain, resource)).Result()
	if err == redis.Nil {
		return nil, ports.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up entry: %w", err)
	}

	var entry core.ResourceEntry
	if err := json.Unmarshal([]byte(payload), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Put registers or replaces an entry
func (r *RedisRegistry) Put(ctx context.Context, entry *core.ResourceEntry) error {
	stored := *entry
	stored.Resource = core.NormalizeResource(stored.Resource)

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	key := r.key(stored.Domain, stored.Resource)
	if err := r.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	if err := r.client.SAdd(ctx, r.domainSet(stored.Domain), key).Err(); err != nil {
		return fmt.Errorf("failed to index entry: %w", err)
	}
	return nil
}

// List returns every entry registered under the domain
func (r *RedisRegistry) List(ctx context.Context, domain string) ([]core.ResourceEntry, error) {
	keys, err := r.client.SMembers(ctx, r.domainSet(domain)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	var entries []core.ResourceEntry
	for _, key := range keys {
		payload, err := r.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", key, err)
		}
		var entry core.ResourceEntry
		if err := json.Unmarshal([]byte(payload), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry %s: %w", key, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
