// Package main は生成パラメータの系統的なスイープ実験を実行するCLIです。
// steps と guidanceScale を振って生成し、検証メトリクスをJSONに記録します。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/yourusername/mesh-forge/internal/asset"
	"github.com/yourusername/mesh-forge/internal/mesh"
)

var (
	defaultStepsValues    = []int{16, 32, 64, 128}
	defaultGuidanceValues = []float64{3.0, 7.5, 15.0, 20.0}
)

// experimentResult は1実験分の記録です。
type experimentResult struct {
	ExperimentID  string               `json:"experimentId"`
	Prompt        string               `json:"prompt"`
	Params        asset.GenerateParams `json:"parameters"`
	TotalSeconds  float64              `json:"totalSeconds"`
	VertexCount   int                  `json:"vertexCount,omitempty"`
	TriangleCount int                  `json:"triangleCount,omitempty"`
	IsWatertight  bool                 `json:"isWatertight,omitempty"`
	QualityScore  float64              `json:"qualityScore,omitempty"`
	OutputFile    string               `json:"outputFile,omitempty"`
	Success       bool                 `json:"success"`
	Error         string               `json:"error,omitempty"`
}

func main() {
	var (
		generatorURL = flag.String("generator", "http://127.0.0.1:9010", "推論サーバーのベースURL")
		outputDir    = flag.String("out", filepath.Join("outputs", "experiments"), "結果の出力先ディレクトリ")
		stepsPrompt  = flag.String("steps-prompt", "medieval wooden chair", "stepsスイープに使うプロンプト")
		guidePrompt  = flag.String("guidance-prompt", "futuristic sword", "guidanceスイープに使うプロンプト")
		seed         = flag.Int64("seed", 42, "全実験で固定するシード")
		mode         = flag.String("mode", "both", "実行するスイープ (steps, guidance, both)")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o750); err != nil {
		log.Fatalf("出力ディレクトリの作成に失敗しました: %v", err)
	}

	generator := asset.NewHTTPGenerator(*generatorURL, 0)
	sweep := &sweeper{
		generator: generator,
		outputDir: *outputDir,
		seed:      *seed,
		logger:    log.Default(),
	}

	var results []experimentResult
	switch *mode {
	case "steps":
		results = sweep.stepsSweep(*stepsPrompt, defaultStepsValues)
	case "guidance":
		results = sweep.guidanceSweep(*guidePrompt, defaultGuidanceValues)
	case "both":
		results = append(results, sweep.stepsSweep(*stepsPrompt, defaultStepsValues)...)
		results = append(results, sweep.guidanceSweep(*guidePrompt, defaultGuidanceValues)...)
	default:
		log.Fatalf("unknown mode: %s", *mode)
	}

	resultsPath := filepath.Join(*outputDir, "sweep_results.json")
	if err := writeJSON(resultsPath, results); err != nil {
		log.Fatalf("結果の保存に失敗しました: %v", err)
	}

	summarize(results)
	log.Printf("results saved to %s", resultsPath)
}

type sweeper struct {
	generator asset.Generator
	outputDir string
	seed      int64
	logger    *log.Logger
}

func (s *sweeper) stepsSweep(prompt string, values []int) []experimentResult {
	s.logger.Printf("=== Steps Sweep: %v ===", values)
	results := make([]experimentResult, 0, len(values))
	for _, steps := range values {
		params := asset.GenerateParams{
			Prompt:        prompt,
			Steps:         steps,
			GuidanceScale: asset.DefaultGuidanceScale,
			Seed:          &s.seed,
		}
		results = append(results, s.run(fmt.Sprintf("steps_%d", steps), params))
	}
	return results
}

func (s *sweeper) guidanceSweep(prompt string, values []float64) []experimentResult {
	s.logger.Printf("=== Guidance Scale Sweep: %v ===", values)
	results := make([]experimentResult, 0, len(values))
	for _, guidance := range values {
		params := asset.GenerateParams{
			Prompt:        prompt,
			Steps:         asset.DefaultSteps,
			GuidanceScale: guidance,
			Seed:          &s.seed,
		}
		results = append(results, s.run(fmt.Sprintf("guidance_%.1f", guidance), params))
	}
	return results
}

func (s *sweeper) run(experimentID string, params asset.GenerateParams) experimentResult {
	s.logger.Printf("running experiment %s: steps=%d guidance=%.1f", experimentID, params.Steps, params.GuidanceScale)

	result := experimentResult{
		ExperimentID: experimentID,
		Prompt:       params.Prompt,
		Params:       params,
	}

	start := time.Now()
	m, _, err := s.generator.Generate(context.Background(), params)
	if err != nil {
		result.TotalSeconds = time.Since(start).Seconds()
		result.Error = err.Error()
		s.logger.Printf("experiment %s failed: %v", experimentID, err)
		return result
	}

	metrics := mesh.Validate(m)
	outputPath := filepath.Join(s.outputDir, experimentID+".glb")
	if err := mesh.SaveGLB(m, outputPath); err != nil {
		result.TotalSeconds = time.Since(start).Seconds()
		result.Error = err.Error()
		return result
	}

	result.TotalSeconds = time.Since(start).Seconds()
	result.VertexCount = metrics.VertexCount
	result.TriangleCount = metrics.TriangleCount
	result.IsWatertight = metrics.IsWatertight
	result.QualityScore = metrics.QualityScore
	result.OutputFile = outputPath
	result.Success = true

	s.logger.Printf("experiment %s completed: %d tris, quality %.1f",
		experimentID, metrics.TriangleCount, metrics.QualityScore)
	return result
}

func summarize(results []experimentResult) {
	var succeeded int
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	fmt.Printf("\n=== Sweep Summary ===\n")
	fmt.Printf("experiments: %d (succeeded %d, failed %d)\n", len(results), succeeded, len(results)-succeeded)
	for _, r := range results {
		if !r.Success {
			fmt.Printf("  %-16s FAILED: %s\n", r.ExperimentID, r.Error)
			continue
		}
		fmt.Printf("  %-16s %6d tris  quality %5.1f  %6.1fs\n",
			r.ExperimentID, r.TriangleCount, r.QualityScore, r.TotalSeconds)
	}
}

func writeJSON(path string, v any) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
