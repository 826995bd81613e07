package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "job:"

// RedisStore はジョブ状態を Redis に保存する Store 実装です。
// 分散構成（QUEUE_BACKEND=redis）で使用します。
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore は RedisStore を作成します。ttl > 0 の場合、
// レコードは Redis 側でも自動失効します。
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
		now: time.Now,
	}
}

// Create は新しいジョブを queued 状態で登録します。
func (s *RedisStore) Create(ctx context.Context, id string, params any) (*Job, error) {
	job := &Job{
		ID:        id,
		Status:    StatusQueued,
		CreatedAt: s.now().UTC(),
		Params:    params,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	ok, err := s.rdb.SetNX(ctx, jobKey(id), payload, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateJob
	}
	return job, nil
}

// Get はジョブを取得します。存在しない場合は (nil, nil) を返します。
func (s *RedisStore) Get(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("jobID is required")
	}
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Update は指定されたフィールドだけをマージして保存します。
// WATCH による楽観ロックで、並行更新時は読み直して再試行します。
func (s *RedisStore) Update(ctx context.Context, id string, update Update) (*Job, error) {
	key := jobKey(id)
	for {
		var updated *Job
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			var job Job
			if err := json.Unmarshal(data, &job); err != nil {
				return err
			}
			if err := applyUpdate(&job, update, s.now().UTC()); err != nil {
				return err
			}
			payload, err := json.Marshal(&job)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, s.ttl)
				return nil
			})
			if err == nil {
				updated = &job
			}
			return err
		}, key)
		switch {
		case err == redis.TxFailedErr:
			continue
		case err == redis.Nil:
			return nil, nil
		case err != nil:
			return nil, err
		}
		return updated, nil
	}
}

// ListByStatus は指定状態のジョブ一覧を返します。
func (s *RedisStore) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	var list []*Job
	err := s.scan(ctx, func(job *Job) error {
		if job.Status == status {
			list = append(list, job)
		}
		return nil
	})
	return list, err
}

// Counts は状態ごとのジョブ数を返します。
func (s *RedisStore) Counts(ctx context.Context) (map[Status]int, error) {
	counts := make(map[Status]int)
	err := s.scan(ctx, func(job *Job) error {
		counts[job.Status]++
		return nil
	})
	return counts, err
}

// Delete はジョブを削除します。
func (s *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.rdb.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cleanup は作成から maxAge を超えたジョブを削除します。
func (s *RedisStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now().UTC()
	var removed int
	err := s.scan(ctx, func(job *Job) error {
		if now.Sub(job.CreatedAt) > maxAge {
			n, delErr := s.rdb.Del(ctx, jobKey(job.ID)).Result()
			if delErr != nil {
				return delErr
			}
			removed += int(n)
		}
		return nil
	})
	return removed, err
}

func (s *RedisStore) scan(ctx context.Context, fn func(job *Job) error) error {
	iter := s.rdb.Scan(ctx, 0, jobKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			return err
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}
	}
	return iter.Err()
}

func jobKey(id string) string {
	return jobKeyPrefix + id
}
