package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Handle はバックグラウンドで実行中のジョブへの参照です。
// 完了待ちや結果の問い合わせに利用できます。
type Handle struct {
	JobID string

	done chan struct{}
	err  error
}

// Done はジョブ完了時に閉じられるチャネルを返します。
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err は完了後の実行エラーを返します。完了前は常に nil です。
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Runner はジョブをゴルーチンとして起動し、ハンドルを追跡します。
// 同時実行数の上限は設けていません。
type Runner struct {
	logger *log.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	wg      sync.WaitGroup
}

// NewRunner は Runner を作成します。
func NewRunner(logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		logger:  logger,
		handles: make(map[string]*Handle),
	}
}

// Dispatch はジョブをバックグラウンドで起動し、ハンドルを返します。
func (r *Runner) Dispatch(jobID string, fn func(ctx context.Context) error) *Handle {
	handle := &Handle{
		JobID: jobID,
		done:  make(chan struct{}),
	}

	r.mu.Lock()
	r.handles[jobID] = handle
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		handle.err = fn(context.Background())
		if handle.err != nil {
			r.logger.Printf("job %s runner error: %v", jobID, handle.err)
		}
		close(handle.done)

		r.mu.Lock()
		delete(r.handles, jobID)
		r.mu.Unlock()
	}()

	return handle
}

// Handle は実行中ジョブのハンドルを返します。未実行・完了済みの場合は nil です。
func (r *Runner) Handle(jobID string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[jobID]
}

// Wait は起動済みの全ジョブの完了を待ちます。
func (r *Runner) Wait() {
	r.wg.Wait()
}

// StartCleanup は古いジョブを定期削除するループを起動します。
// ctx のキャンセルで停止します。
func StartCleanup(ctx context.Context, store Store, maxAge, interval time.Duration, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.Cleanup(ctx, maxAge)
				if err != nil {
					logger.Printf("job cleanup failed: %v", err)
					continue
				}
				if removed > 0 {
					logger.Printf("job cleanup removed %d job(s)", removed)
				}
			}
		}
	}()
}
