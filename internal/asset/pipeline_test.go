package asset

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/yourusername/mesh-forge/internal/jobs"
	"github.com/yourusername/mesh-forge/internal/mesh"
	"github.com/yourusername/mesh-forge/internal/storage"
)

type stubGenerator struct {
	mesh *mesh.Mesh
	err  error
}

func (g *stubGenerator) Generate(ctx context.Context, params GenerateParams) (*mesh.Mesh, *GenerationInfo, error) {
	if g.err != nil {
		return nil, nil, g.err
	}
	return g.mesh.Clone(), &GenerationInfo{Seconds: 1.5}, nil
}

func newTestService(t *testing.T, generator Generator) (*Service, *storage.Local) {
	t.Helper()
	artifacts, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return NewService(generator, artifacts, nil), artifacts
}

func defaultParams(prompt string) GenerateParams {
	return GenerateParams{
		Prompt:        prompt,
		Steps:         DefaultSteps,
		GuidanceScale: DefaultGuidanceScale,
		Postprocess:   true,
		TargetTris:    DefaultTargetTris,
	}
}

func TestRunGenerationHappyPath(t *testing.T) {
	svc, artifacts := newTestService(t, &stubGenerator{mesh: mesh.NewBox([3]float64{1, 1, 1})})

	var progress []float64
	reporter := func(p float64, message string) {
		progress = append(progress, p)
	}

	result, err := svc.RunGeneration(context.Background(), "job-1", defaultParams("a wooden chair"), reporter)
	if err != nil {
		t.Fatalf("RunGeneration failed: %v", err)
	}

	if result.FilePath != artifacts.AssetPath("job-1") {
		t.Fatalf("unexpected output path: %s", result.FilePath)
	}
	if _, err := os.Stat(result.FilePath); err != nil {
		t.Fatalf("artifact missing: %v", err)
	}

	// 進捗は非減少で0から1まで到達する
	if len(progress) == 0 || progress[0] != 0.0 || progress[len(progress)-1] != 1.0 {
		t.Fatalf("unexpected progress checkpoints: %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}

	meta, ok := result.Metadata.(*Metadata)
	if !ok {
		t.Fatalf("unexpected metadata type: %T", result.Metadata)
	}
	if meta.Validation == nil || meta.Validation.QualityScore != 100 {
		t.Fatalf("unexpected validation metrics: %+v", meta.Validation)
	}
	if meta.Compatibility == nil || !meta.Compatibility.IsGameReady {
		t.Fatalf("unexpected compatibility report: %+v", meta.Compatibility)
	}
	if meta.GenerationSeconds != 1.5 {
		t.Fatalf("unexpected generation time: %v", meta.GenerationSeconds)
	}
}

func TestRunGenerationWithLODs(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{mesh: mesh.NewBox([3]float64{1, 1, 1})})

	params := defaultParams("a stone tower")
	params.GenerateLODs = true

	result, err := svc.RunGeneration(context.Background(), "job-2", params, nil)
	if err != nil {
		t.Fatalf("RunGeneration failed: %v", err)
	}

	if len(result.LODPaths) != 3 {
		t.Fatalf("expected 3 LOD variants, got %d", len(result.LODPaths))
	}
	for name, path := range result.LODPaths {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("LOD artifact %s missing: %v", name, err)
		}
	}
	if _, ok := result.LODPaths["LOD0"]; !ok {
		t.Fatalf("LOD0 missing: %v", result.LODPaths)
	}
}

func TestRunGenerationGeneratorFailure(t *testing.T) {
	wantErr := errors.New("model checkpoint not loaded")
	svc, _ := newTestService(t, &stubGenerator{err: wantErr})

	_, err := svc.RunGeneration(context.Background(), "job-3", defaultParams("a chair"), nil)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected generator error to propagate, got %v", err)
	}
}

func TestExecuteIntegration(t *testing.T) {
	svc, _ := newTestService(t, &stubGenerator{mesh: mesh.NewBox([3]float64{1, 1, 1})})
	store := jobs.NewMemoryStore()
	ctx := context.Background()

	params := defaultParams("a wooden chair")
	if _, err := store.Create(ctx, "job-1", params); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	raw := mustMarshal(t, params)

	if err := jobs.Execute(ctx, store, svc, "job-1", raw); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	job, _ := store.Get(ctx, "job-1")
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("unexpected status: %s (error=%q)", job.Status, job.Error)
	}
	if job.StartedAt == nil || job.CompletedAt == nil {
		t.Fatal("timestamps missing")
	}
	if job.Result == nil || job.Result.FilePath == "" {
		t.Fatalf("result missing: %+v", job.Result)
	}
}
