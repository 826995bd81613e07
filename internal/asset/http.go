package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/mesh-forge/internal/jobs"
	"github.com/yourusername/mesh-forge/internal/storage"
)

// JobScheduler はジョブをバックグラウンド実行に引き渡すためのインターフェースです。
type JobScheduler interface {
	Schedule(ctx context.Context, jobID string, params json.RawMessage) error
}

type generateRequest struct {
	Prompt        string   `json:"prompt" binding:"required"`
	Steps         *int     `json:"steps" binding:"omitempty,min=16,max=128"`
	GuidanceScale *float64 `json:"guidanceScale" binding:"omitempty,min=3,max=20"`
	Seed          *int64   `json:"seed"`
	Postprocess   *bool    `json:"postprocess"`
	TargetTris    *int     `json:"targetTris" binding:"omitempty,min=100,max=50000"`
	GenerateLODs  bool     `json:"generateLods"`
}

func (r *generateRequest) toParams() GenerateParams {
	params := GenerateParams{
		Prompt:        strings.TrimSpace(r.Prompt),
		Steps:         DefaultSteps,
		GuidanceScale: DefaultGuidanceScale,
		Seed:          r.Seed,
		Postprocess:   true,
		TargetTris:    DefaultTargetTris,
		GenerateLODs:  r.GenerateLODs,
	}
	if r.Steps != nil {
		params.Steps = *r.Steps
	}
	if r.GuidanceScale != nil {
		params.GuidanceScale = *r.GuidanceScale
	}
	if r.Postprocess != nil {
		params.Postprocess = *r.Postprocess
	}
	if r.TargetTris != nil {
		params.TargetTris = *r.TargetTris
	}
	return params
}

// GenerateHandler は POST /api/generate のハンドラーを返します。
// パラメータ検証を通過した場合のみジョブを作成し、バックグラウンド実行に回します。
func GenerateHandler(store jobs.Store, scheduler JobScheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req generateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "リクエストパラメータが許容範囲外です。",
			})
			return
		}

		params := req.toParams()
		if err := params.Validate(); err != nil {
			respondWithError(c, err)
			return
		}

		jobID := uuid.NewString()
		job, err := store.Create(c.Request.Context(), jobID, params)
		if err != nil {
			respondWithError(c, err)
			return
		}

		raw, err := json.Marshal(params)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if err := scheduler.Schedule(c.Request.Context(), jobID, raw); err != nil {
			// 実行に引き渡せなかったジョブは残さない
			if _, delErr := store.Delete(c.Request.Context(), jobID); delErr != nil {
				err = fmt.Errorf("%w (cleanup failed: %v)", err, delErr)
			}
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"jobId":   jobID,
			"status":  job.Status,
			"message": "Job queued for processing",
		})
	}
}

// StatusHandler は GET /api/jobs/:id のハンドラーを返します。
func StatusHandler(store jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := lookupJob(c, store)
		if !ok {
			return
		}

		payload := gin.H{
			"jobId":     job.ID,
			"status":    job.Status,
			"progress":  job.Progress,
			"message":   job.Message,
			"createdAt": job.CreatedAt,
		}
		if job.StartedAt != nil {
			payload["startedAt"] = job.StartedAt
		}
		if job.CompletedAt != nil {
			payload["completedAt"] = job.CompletedAt
		}
		switch job.Status {
		case jobs.StatusCompleted:
			payload["downloadUrl"] = fmt.Sprintf("/api/jobs/%s/download", job.ID)
			if job.Result != nil {
				payload["metadata"] = job.Result.Metadata
			}
		case jobs.StatusFailed:
			payload["error"] = job.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}

// DownloadHandler は GET /api/jobs/:id/download のハンドラーを返します。
// lod クエリで特定のLODバリアントを指定できます。
func DownloadHandler(store jobs.Store, artifacts *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := lookupJob(c, store)
		if !ok {
			return
		}

		if job.Status != jobs.StatusCompleted {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "JOB_NOT_COMPLETED",
				"message": fmt.Sprintf("ジョブはまだ完了していません（現在の状態: %s）。", job.Status),
			})
			return
		}
		if job.Result == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "ジョブの成果物が見つかりませんでした。",
			})
			return
		}

		filePath := job.Result.FilePath
		if lodExpr := strings.TrimSpace(c.Query("lod")); lodExpr != "" {
			level, err := strconv.Atoi(lodExpr)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "INVALID_INPUT",
					"message": "lod は整数で指定してください。",
				})
				return
			}
			lodPath, exists := job.Result.LODPaths[fmt.Sprintf("LOD%d", level)]
			if !exists {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "LOD_NOT_FOUND",
					"message": fmt.Sprintf("LOD%d は存在しません。", level),
				})
				return
			}
			filePath = lodPath
		}

		file, info, err := artifacts.Open(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "FILE_NOT_FOUND",
					"message": "成果物ファイルが見つかりませんでした。",
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "成果物の読み込みに失敗しました。",
			})
			return
		}
		defer file.Close()

		filename := filepath.Base(filePath)
		encodedName := url.PathEscape(filename)
		c.Header("Content-Type", glbMIME)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", job.ID)
		c.DataFromReader(http.StatusOK, info.Size(), glbMIME, file, nil)
	}
}

// QueueStatusHandler は GET /api/queue/status のハンドラーを返します。
func QueueStatusHandler(store jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		counts, err := store.Counts(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "キュー状態の取得に失敗しました。",
			})
			return
		}

		total := 0
		for _, n := range counts {
			total += n
		}
		c.JSON(http.StatusOK, gin.H{
			"totalJobs":  total,
			"queued":     counts[jobs.StatusQueued],
			"processing": counts[jobs.StatusProcessing],
			"completed":  counts[jobs.StatusCompleted],
			"failed":     counts[jobs.StatusFailed],
			"cancelled":  counts[jobs.StatusCancelled],
		})
	}
}

// DeleteHandler は DELETE /api/jobs/:id のハンドラーを返します。
// レコードと成果物ファイルの両方を削除します。
func DeleteHandler(store jobs.Store, artifacts *storage.Local) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := lookupJob(c, store)
		if !ok {
			return
		}

		if err := artifacts.Remove(job.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "成果物の削除に失敗しました。",
			})
			return
		}
		if _, err := store.Delete(c.Request.Context(), job.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブの削除に失敗しました。",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "ジョブを削除しました。"})
	}
}

func lookupJob(c *gin.Context, store jobs.Store) (*jobs.Job, bool) {
	jobID := strings.TrimSpace(c.Param("id"))
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "jobId を指定してください。",
		})
		return nil, false
	}

	job, err := store.Get(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "ジョブ情報の取得に失敗しました。",
		})
		return nil, false
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "JOB_NOT_FOUND",
			"message": "指定されたジョブは存在しません。",
		})
		return nil, false
	}
	return job, true
}

func respondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusBadRequest
		switch apiErr.Code {
		case "JOB_NOT_FOUND", "LOD_NOT_FOUND", "FILE_NOT_FOUND":
			status = http.StatusNotFound
		case "GENERATOR_UNAVAILABLE":
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, jobs.ErrDuplicateJob):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "DUPLICATE_JOB",
			"message": "同じIDのジョブが既に存在します。",
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}
