package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/menta2k/photocomp/internal/config"
	"github.com/menta2k/photocomp/internal/logging"
)

// RedisStore keeps each project as a JSON string plus a sorted set of ids
// scored by modification time.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedisStore connects lazily; call Ping to check the server
func NewRedisStore(cfg config.RedisConfig, logger *zap.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.Prefix, logger)
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger *zap.Logger) *RedisStore {
	if prefix == "" {
		prefix = "photocomp"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logging.OrNop(logger),
		now:    time.Now,
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + ":project:" + id
}

func (s *RedisStore) index() string {
	return s.prefix + ":projects"
}

func (s *RedisStore) Create(ctx context.Context, p Project) (Project, error) {
	p, err := prepare(p, s.now())
	if err != nil {
		return Project{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Project{}, err
	}

	exists, err := s.write(ctx, p, data, false)
	if err != nil {
		return Project{}, fmt.Errorf("create project %s: %w", p.ID, err)
	}
	if exists {
		return Project{}, fmt.Errorf("project %s already exists", p.ID)
	}
	return p, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Project, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Project{}, err
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Error("failed to unmarshal project", zap.String("id", id), zap.Error(err))
		return Project{}, err
	}
	return p, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Project, error) {
	ids, err := s.client.ZRevRange(ctx, s.index(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Project{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Project, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a body
			s.logger.Warn("dangling project index entry", zap.String("id", ids[i]))
			continue
		}
		var p Project
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.logger.Error("failed to unmarshal project", zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	sortRecent(out)
	return out, nil
}

func (s *RedisStore) Update(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		return Project{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	p, err := prepare(p, s.now())
	if err != nil {
		return Project{}, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return Project{}, err
	}

	exists, err := s.write(ctx, p, data, true)
	if err != nil {
		return Project{}, fmt.Errorf("update project %s: %w", p.ID, err)
	}
	if !exists {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
	}
	return p, nil
}

// write stores the body and its index entry in one MULTI/EXEC while the
// key is watched. Nothing is written unless the key's existence matches
// update. It reports whether the key existed.
func (s *RedisStore) write(ctx context.Context, p Project, data []byte, update bool) (bool, error) {
	key := s.key(p.ID)
	var exists bool
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		exists = n > 0
		if exists != update {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.index(), score(p))
			return nil
		})
		return err
	}, key)
	return exists, err
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(id))
		pipe.ZRem(ctx, s.index(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func score(p Project) redis.Z {
	return redis.Z{Score: float64(p.LastModified.UnixMilli()), Member: p.ID}
}
