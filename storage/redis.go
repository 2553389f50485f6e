package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safedep/gatekeeper/core/gatekeeper"
)

const defaultRedisKeyPrefix = "gatekeeper"

// RedisConfig configures the redis connection used for shared policy storage.
type RedisConfig struct {
	URL          string
	KeyPrefix    string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisClient creates a redis client from the configuration and verifies
// the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis url is not configured")
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisPolicyStore keeps policy documents in redis so that several
// gatekeeper processes share one set of guild policies.
//
// Documents live in one hash keyed by guild id, update times in a second hash.
type RedisPolicyStore struct {
	client     redis.UniversalClient
	docsKey    string
	updatedKey string
	now        func() time.Time
}

// NewRedisPolicyStore creates a policy store on top of an existing client.
func NewRedisPolicyStore(client redis.UniversalClient, keyPrefix string) *RedisPolicyStore {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}

	return &RedisPolicyStore{
		client:     client,
		docsKey:    keyPrefix + ":policies",
		updatedKey: keyPrefix + ":policies:updated",
		now:        time.Now,
	}
}

// ReadPolicy returns the stored document for a guild.
func (s *RedisPolicyStore) ReadPolicy(ctx context.Context, guildID string) ([]byte, bool, error) {
	doc, err := s.client.HGet(ctx, s.docsKey, guildID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read policy for guild %s: %w", guildID, err)
	}
	if doc == nil {
		doc = []byte{}
	}
	return doc, true, nil
}

// WritePolicy replaces the document for a guild.
func (s *RedisPolicyStore) WritePolicy(ctx context.Context, guildID string, doc []byte) error {
	if doc == nil {
		doc = []byte{}
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey, guildID, doc)
		pipe.HSet(ctx, s.updatedKey, guildID, s.now().UTC().UnixNano())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write policy for guild %s: %w", guildID, err)
	}
	return nil
}

// DeletePolicy removes the document for a guild.
func (s *RedisPolicyStore) DeletePolicy(ctx context.Context, guildID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.docsKey, guildID)
		pipe.HDel(ctx, s.updatedKey, guildID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete policy for guild %s: %w", guildID, err)
	}
	return nil
}

// ListPolicies returns metadata for every stored document.
func (s *RedisPolicyStore) ListPolicies(ctx context.Context) ([]PolicyInfo, error) {
	docs, err := s.client.HGetAll(ctx, s.docsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}

	updated, err := s.client.HGetAll(ctx, s.updatedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list policy update times: %w", err)
	}

	infos := make([]PolicyInfo, 0, len(docs))
	for guildID, doc := range docs {
		info := PolicyInfo{GuildID: guildID, SizeBytes: len(doc)}
		if ns, err := strconv.ParseInt(updated[guildID], 10, 64); err == nil {
			info.UpdatedAt = time.Unix(0, ns).UTC()
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].GuildID < infos[j].GuildID
	})

	return infos, nil
}

var (
	_ PolicyStore             = (*RedisPolicyStore)(nil)
	_ gatekeeper.PolicySource = (*RedisPolicyStore)(nil)
)
