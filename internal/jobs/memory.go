package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore は単一プロセス用のインメモリ Store 実装です。
// すべての変更は単一の排他ロックで直列化されます。
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryStore は MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create は新しいジョブを queued 状態で登録します。
func (s *MemoryStore) Create(ctx context.Context, id string, params any) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return nil, ErrDuplicateJob
	}
	job := &Job{
		ID:        id,
		Status:    StatusQueued,
		CreatedAt: s.now().UTC(),
		Params:    params,
	}
	s.jobs[id] = job
	return clone(job), nil
}

// Get はジョブを取得します。返り値は内部状態のコピーです。
func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.jobs[id]), nil
}

// Update は指定されたフィールドだけをロック下でマージします。
func (s *MemoryStore) Update(ctx context.Context, id string, update Update) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	if err := applyUpdate(job, update, s.now().UTC()); err != nil {
		return nil, err
	}
	return clone(job), nil
}

// ListByStatus は指定状態のジョブを作成時刻順で返します。
func (s *MemoryStore) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*Job
	for _, job := range s.jobs {
		if job.Status == status {
			list = append(list, clone(job))
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}

// Counts は状態ごとのジョブ数を返します。
func (s *MemoryStore) Counts(ctx context.Context) (map[Status]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Status]int)
	for _, job := range s.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

// Delete はジョブを削除します。
func (s *MemoryStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

// Cleanup は作成から maxAge を超えたジョブを削除します。
func (s *MemoryStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var removed int
	for id, job := range s.jobs {
		if now.Sub(job.CreatedAt) > maxAge {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed, nil
}
