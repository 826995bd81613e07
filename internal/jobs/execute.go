package jobs

import (
	"context"
	"encoding/json"
	"fmt"
)

// ProgressReporter は進捗更新用コールバックです。progress は 0〜1 です。
type ProgressReporter func(progress float64, message string)

// GenerationRunner は1件の生成処理を実行できるサービスが実装します。
type GenerationRunner interface {
	RunPayload(ctx context.Context, jobID string, params json.RawMessage, reporter ProgressReporter) (*Result, error)
}

// Execute は1件のジョブをパイプラインで最後まで実行し、結果を Store に反映します。
// 処理中のエラーは呼び出し元へは伝播させず、ジョブの error フィールドに
// そのままの文言で記録します（元のリクエストはすでに応答済みのため）。
func Execute(ctx context.Context, store Store, runner GenerationRunner, jobID string, params json.RawMessage) error {
	processing := StatusProcessing
	progress := 0.0
	message := "Generating mesh..."
	if _, err := store.Update(ctx, jobID, Update{
		Status:   &processing,
		Progress: &progress,
		Message:  &message,
	}); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	reporter := func(progress float64, message string) {
		_, _ = store.Update(ctx, jobID, Update{
			Progress: &progress,
			Message:  &message,
		})
	}

	result, runErr := runner.RunPayload(ctx, jobID, params, reporter)
	if runErr != nil {
		failed := StatusFailed
		errText := runErr.Error()
		if _, err := store.Update(ctx, jobID, Update{
			Status: &failed,
			Error:  &errText,
		}); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	completed := StatusCompleted
	done := 1.0
	doneMessage := "Generation complete"
	if _, err := store.Update(ctx, jobID, Update{
		Status:   &completed,
		Progress: &done,
		Message:  &doneMessage,
		Result:   result,
	}); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}
	return nil
}
