package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateJob は既存のジョブIDで作成しようとした場合に返されます。
	ErrDuplicateJob = errors.New("job already exists")
	// ErrInvalidTransition は許可されない状態遷移を表します。
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store はジョブ状態の保存先を抽象化します。
// ハンドラーには生成済みの Store を注入します（パッケージレベルの
// シングルトンは持ちません）。
type Store interface {
	// Create は新しいジョブを queued 状態で登録します。
	// 既存IDの場合は ErrDuplicateJob を返します。
	Create(ctx context.Context, id string, params any) (*Job, error)
	// Get はジョブを取得します。存在しない場合は (nil, nil) を返します。
	Get(ctx context.Context, id string) (*Job, error)
	// Update は指定されたフィールドだけをアトミックにマージします。
	// 存在しない場合は (nil, nil)、不正な遷移は ErrInvalidTransition を返します。
	Update(ctx context.Context, id string, update Update) (*Job, error)
	// ListByStatus は指定状態のジョブ一覧を返します。
	ListByStatus(ctx context.Context, status Status) ([]*Job, error)
	// Counts は状態ごとのジョブ数を返します。
	Counts(ctx context.Context) (map[Status]int, error)
	// Delete はジョブを削除し、存在した場合 true を返します。
	Delete(ctx context.Context, id string) (bool, error)
	// Cleanup は作成から maxAge を超えたジョブを削除し、件数を返します。
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
}

// applyUpdate はライフサイクル規則を適用しながら job を書き換えます。
// 状態遷移の規則は Store 実装間でここに集約します。
func applyUpdate(job *Job, update Update, now time.Time) error {
	if update.Status != nil {
		next := *update.Status
		if !next.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
		}
		if err := validateTransition(job.Status, next); err != nil {
			return err
		}
		job.Status = next
		if next == StatusProcessing && job.StartedAt == nil {
			t := now
			job.StartedAt = &t
		}
		if next.Terminal() && job.CompletedAt == nil {
			t := now
			job.CompletedAt = &t
		}
	}
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.Message != nil {
		job.Message = *update.Message
	}
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	return nil
}

// validateTransition は単調な状態遷移のみを許可します。
// 同一状態への更新（処理中の進捗更新など）は遷移とみなしません。
func validateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
