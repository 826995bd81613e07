package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/yourusername/mesh-forge/internal/config"
)

const (
	taskTypeGenerate = "asset:generate"
	generateQueue    = "generate"

	// generateTimeout はキューバックエンド利用時の生成1件あたりの上限です。
	generateTimeout = 30 * time.Minute
)

// Manager は Asynq によるジョブの投入とワーカー実行を担います。
// QUEUE_BACKEND=redis の分散構成で使用します。
type Manager struct {
	cfg    *config.Config
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  Store
	runner GenerationRunner
	logger *log.Logger
}

// TaskPayload は生成ジョブのペイロードです。
type TaskPayload struct {
	JobID  string          `json:"jobId"`
	Params json.RawMessage `json:"params"`
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, runner GenerationRunner, store Store, logger *log.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				generateQueue: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		cfg:    cfg,
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		runner: runner,
		logger: logger,
	}
	mux.HandleFunc(taskTypeGenerate, manager.handleGenerateTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			if m.logger != nil {
				m.logger.Printf("asynq server stopped with error: %v", err)
			} else {
				log.Printf("asynq server stopped with error: %v", err)
			}
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	m.client.Close()
	return nil
}

// Enqueue は作成済みジョブをキューに投入します。リトライはしません。
func (m *Manager) Enqueue(ctx context.Context, jobID string, params json.RawMessage) error {
	if jobID == "" {
		return fmt.Errorf("jobID is required")
	}
	body, err := json.Marshal(&TaskPayload{JobID: jobID, Params: params})
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeGenerate, body, asynq.Queue(generateQueue))
	_, err = m.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(generateTimeout),
		asynq.TaskID(jobID),
	)
	return err
}

func (m *Manager) handleGenerateTask(ctx context.Context, task *asynq.Task) error {
	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.JobID == "" {
		return fmt.Errorf("missing jobId in payload")
	}
	return Execute(ctx, m.store, m.runner, payload.JobID, payload.Params)
}
