package rstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/dRL/lib/db"
	"github.com/ValentinKolb/dRL/lib/record"
	"github.com/ValentinKolb/dRL/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisURL = "redis://localhost:6379"
	defaultPrefix   = "drl"
	defaultTimeout  = 5 * time.Second
	maxTxRetries    = 32
)

var log = logger.GetLogger("store")

// Options configures the Redis store
type Options struct {
	// URL is a redis:// URL, empty means redis://localhost:6379
	URL string
	// Prefix is prepended to every key, empty means "drl". Use one prefix per shard.
	Prefix string
	// Timeout bounds every store operation
	Timeout time.Duration
}

type storeImpl struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedisStore connects to Redis and returns a store keeping its records under the
// configured prefix. Conditional updates are optimistic WATCH/MULTI transactions.
func NewRedisStore(opts Options) (store.IStore, error) {
	if opts.URL == "" {
		opts.URL = defaultRedisURL
	}
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	return &storeImpl{
		client:  client,
		prefix:  strings.TrimSuffix(opts.Prefix, ":"),
		timeout: opts.Timeout,
	}, nil
}

// --------------------------------------------------------------------------
// Keys and encoding
// --------------------------------------------------------------------------

func (s *storeImpl) recordKey(id string) string {
	return s.prefix + ":rec:" + id
}

// indexKey is the set of all record ids, used by List
func (s *storeImpl) indexKey() string {
	return s.prefix + ":records"
}

func decode(payload []byte) (record.Record, error) {
	var rec record.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return record.Record{}, store.NewError(store.RetCInternalError, fmt.Sprintf("decode record: %v", err))
	}
	return rec, nil
}

func encode(rec record.Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("encode record: %v", err))
	}
	return payload, nil
}

// wrap turns redis errors into store errors, store errors pass through unchanged
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return se
	}
	return store.NewError(store.RetCInternalError, err.Error())
}

// watch runs fn as an optimistic transaction on key and retries when another client
// changed the key between the read and EXEC.
func (s *storeImpl) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debugf("transaction on %s failed, retrying (%d/%d)", key, i+1, maxTxRetries)
			continue
		}
		return wrap(err)
	}
	return store.NewError(store.RetCInternalError, fmt.Sprintf("too much contention on %s", key))
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Create(rec record.Record) error {
	if err := store.ValidateCreate(rec); err != nil {
		return err
	}
	payload, err := encode(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	key := s.recordKey(rec.ID)
	return s.watch(ctx, key, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return store.NewError(store.RetCAlreadyExists, fmt.Sprintf("record %q already exists", rec.ID))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			pipe.SAdd(ctx, s.indexKey(), rec.ID)
			return nil
		})
		return err
	})
}

func (s *storeImpl) Get(id string) (record.Record, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	payload, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return record.Record{}, false, nil
	}
	if err != nil {
		return record.Record{}, false, wrap(err)
	}
	rec, err := decode(payload)
	if err != nil {
		return record.Record{}, false, err
	}
	return rec, true, nil
}

func (s *storeImpl) Update(id string, cond record.Condition, assign record.Assignment) (record.Record, error) {
	if err := store.ValidateUpdate(id, assign); err != nil {
		return record.Record{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var updated record.Record
	key := s.recordKey(id)
	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return store.NewError(store.RetCNotFound, fmt.Sprintf("record %q not found", id))
		}
		if err != nil {
			return err
		}
		stored, err := decode(payload)
		if err != nil {
			return err
		}
		if !cond.Holds(stored) {
			return store.NewError(store.RetCConditionFailed, fmt.Sprintf("record %q: lock condition failed", id))
		}

		next := assign.Apply(stored)
		nextPayload, err := encode(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, nextPayload, 0)
			return nil
		})
		if err == nil {
			updated = next
		}
		return err
	})
	if err != nil {
		return record.Record{}, err
	}
	return updated, nil
}

func (s *storeImpl) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.recordKey(id))
		pipe.SRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return wrap(err)
	}
	if del.Val() == 0 {
		return store.NewError(store.RetCNotFound, fmt.Sprintf("record %q not found", id))
	}
	return nil
}

func (s *storeImpl) List() ([]record.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, wrap(err)
	}
	if len(ids) == 0 {
		return []record.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap(err)
	}

	recs := make([]record.Record, 0, len(values))
	for _, v := range values {
		payload, ok := v.(string)
		if !ok {
			continue // deleted between SMEMBERS and MGET
		}
		rec, err := decode([]byte(payload))
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	count, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return db.DatabaseInfo{}, wrap(err)
	}

	return db.DatabaseInfo{
		RecordCount: int(count),
		DbType:      db.ImplRedis,
		SupportedFeatures: []db.Feature{
			db.FeatureInsert, db.FeatureUpdate, db.FeatureConditionalUpdate,
			db.FeatureGet, db.FeatureDelete, db.FeatureRange,
		},
		Metadata: &struct {
			Prefix string `json:"prefix"`
			Addr   string `json:"addr"`
		}{
			Prefix: s.prefix,
			Addr:   s.client.Options().Addr,
		},
	}, nil
}
