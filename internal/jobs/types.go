// Package jobs は生成ジョブのライフサイクル管理機能を提供します。
package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal は終了状態（completed / failed / cancelled）かどうかを返します。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Valid は既知の状態値かどうかを返します。
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Result はジョブ完了時の成果物情報です。
type Result struct {
	FilePath string            `json:"filePath"`
	LODPaths map[string]string `json:"lodPaths,omitempty"`
	Metadata any               `json:"metadata,omitempty"`
}

// Job はジョブの現在状態を表します。
// StartedAt は processing への最初の遷移時に一度だけ、
// CompletedAt は終了状態への遷移時に一度だけ設定されます。
type Job struct {
	ID          string     `json:"jobId"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Progress    float64    `json:"progress"`
	Message     string     `json:"message,omitempty"`
	Params      any        `json:"params,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Update は更新するフィールドだけを指定する部分更新です。
// nil のフィールドは変更されません。
type Update struct {
	Status   *Status
	Progress *float64
	Message  *string
	Result   *Result
	Error    *string
}

func clone(job *Job) *Job {
	if job == nil {
		return nil
	}
	out := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		out.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	if job.Result != nil {
		r := *job.Result
		out.Result = &r
	}
	return &out
}
