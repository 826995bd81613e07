package asset

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/yourusername/mesh-forge/internal/jobs"
	"github.com/yourusername/mesh-forge/internal/mesh"
	"github.com/yourusername/mesh-forge/internal/storage"
)

// Service は生成パイプライン全体（生成→検証→削減→LOD→保存）を実行します。
type Service struct {
	generator Generator
	artifacts *storage.Local
	logger    *log.Logger
}

// NewService は Service を作成します。
func NewService(generator Generator, artifacts *storage.Local, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		generator: generator,
		artifacts: artifacts,
		logger:    logger,
	}
}

// RunPayload はキュー経由のJSONパラメータで RunGeneration を実行します。
func (s *Service) RunPayload(ctx context.Context, jobID string, raw json.RawMessage, reporter jobs.ProgressReporter) (*jobs.Result, error) {
	var params GenerateParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("パラメータのデコードに失敗しました: %w", err)
	}
	return s.RunGeneration(ctx, jobID, params, reporter)
}

// RunGeneration は1件の生成ジョブを実行します。進捗は固定チェックポイント
// （0, 0.5, 0.6, 0.8, 1.0）で報告され、実作業量に比例しません。
// 途中のエラーはそのまま返し、生成済みの部分成果物は削除しません。
func (s *Service) RunGeneration(ctx context.Context, jobID string, params GenerateParams, reporter jobs.ProgressReporter) (*jobs.Result, error) {
	report := func(progress float64, message string) {
		if reporter != nil {
			reporter(progress, message)
		}
	}

	report(0.0, "Generating mesh...")
	m, info, err := s.generator.Generate(ctx, params)
	if err != nil {
		return nil, err
	}
	sourceTris := m.TriangleCount()

	report(0.5, "Validating...")
	metrics := mesh.Validate(m)
	compat := mesh.CheckCompatibility(m, metrics)

	if params.Postprocess {
		report(0.6, "Optimizing mesh...")
		m = mesh.Decimate(m, params.TargetTris)
	}

	outputPath := s.artifacts.AssetPath(jobID)
	if err := mesh.SaveGLB(m, outputPath); err != nil {
		return nil, err
	}

	result := &jobs.Result{FilePath: outputPath}

	if params.GenerateLODs {
		report(0.8, "Generating LODs...")
		lods := mesh.GenerateLODs(m, mesh.LODLevels)
		result.LODPaths = make(map[string]string, len(lods))
		for i, lod := range lods {
			lodPath := s.artifacts.LODPath(jobID, i)
			if err := mesh.SaveGLB(lod, lodPath); err != nil {
				return nil, err
			}
			result.LODPaths[fmt.Sprintf("LOD%d", i)] = lodPath
		}
	}

	result.Metadata = &Metadata{
		Prompt:            params.Prompt,
		Steps:             params.Steps,
		GuidanceScale:     params.GuidanceScale,
		Seed:              params.Seed,
		GenerationSeconds: info.Seconds,
		SourceTriangles:   sourceTris,
		OutputTriangles:   m.TriangleCount(),
		Validation:        metrics,
		Compatibility:     compat,
	}

	report(1.0, "Generation complete")
	s.logger.Printf("job %s generated: %d tris (source %d), quality %.1f",
		jobID, m.TriangleCount(), sourceTris, metrics.QualityScore)
	return result, nil
}
