package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/mesh-forge/internal/asset"
	"github.com/yourusername/mesh-forge/internal/config"
	"github.com/yourusername/mesh-forge/internal/jobs"
	"github.com/yourusername/mesh-forge/internal/storage"
)

// application はAPIサーバーの依存オブジェクトをまとめます。
type application struct {
	cfg       *config.Config
	store     jobs.Store
	artifacts *storage.Local
	service   *asset.Service
	scheduler asset.JobScheduler

	runner  *jobs.Runner  // memoryバックエンドで使用
	manager *jobs.Manager // redisバックエンドで使用
}

// runnerScheduler はジョブをプロセス内ゴルーチンとして起動します。
type runnerScheduler struct {
	store   jobs.Store
	service *asset.Service
	runner  *jobs.Runner
}

func (s *runnerScheduler) Schedule(ctx context.Context, jobID string, params json.RawMessage) error {
	s.runner.Dispatch(jobID, func(ctx context.Context) error {
		return jobs.Execute(ctx, s.store, s.service, jobID, params)
	})
	return nil
}

// asynqScheduler はジョブを Asynq キューに投入します。
type asynqScheduler struct {
	manager *jobs.Manager
}

func (s *asynqScheduler) Schedule(ctx context.Context, jobID string, params json.RawMessage) error {
	return s.manager.Enqueue(ctx, jobID, params)
}

func setupApplication(cfg *config.Config, logger *log.Logger) (*application, error) {
	artifacts, err := storage.NewLocal(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	generator := asset.NewHTTPGenerator(cfg.GeneratorURL,
		time.Duration(cfg.GeneratorTimeoutMinutes)*time.Minute)
	service := asset.NewService(generator, artifacts, logger)

	app := &application{
		cfg:       cfg,
		artifacts: artifacts,
		service:   service,
	}

	maxAge := time.Duration(cfg.JobMaxAgeHours) * time.Hour

	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		opt, err := redis.ParseURL(cfg.QueueRedisURL)
		if err != nil {
			return nil, err
		}
		app.store = jobs.NewRedisStore(redis.NewClient(opt), maxAge)
		manager, err := jobs.NewManager(cfg, service, app.store, logger)
		if err != nil {
			return nil, err
		}
		app.manager = manager
		app.scheduler = &asynqScheduler{manager: manager}
	default:
		app.store = jobs.NewMemoryStore()
		app.runner = jobs.NewRunner(logger)
		app.scheduler = &runnerScheduler{
			store:   app.store,
			service: service,
			runner:  app.runner,
		}
	}

	return app, nil
}

// start はワーカーと定期クリーンアップを起動します。
func (app *application) start(ctx context.Context) {
	if app.manager != nil {
		app.manager.StartWorkers()
	}
	jobs.StartCleanup(ctx, app.store,
		time.Duration(app.cfg.JobMaxAgeHours)*time.Hour,
		time.Duration(app.cfg.JobCleanupIntervalMinutes)*time.Minute,
		log.Default(),
	)
}
