// Package asset はテキストからの3Dアセット生成パイプラインとAPIハンドラーを提供します。
package asset

import (
	"fmt"

	"github.com/yourusername/mesh-forge/internal/mesh"
)

// 生成パラメータの許容範囲。範囲外のリクエストはジョブ作成前に拒否します。
const (
	MinSteps = 16
	MaxSteps = 128

	MinGuidanceScale = 3.0
	MaxGuidanceScale = 20.0

	MinTargetTris = 100
	MaxTargetTris = 50000

	DefaultSteps         = 64
	DefaultGuidanceScale = 15.0
	DefaultTargetTris    = 2000
)

// GenerateParams は1件の生成ジョブの入力パラメータです。
type GenerateParams struct {
	Prompt        string  `json:"prompt"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
	Seed          *int64  `json:"seed,omitempty"`
	Postprocess   bool    `json:"postprocess"`
	TargetTris    int     `json:"targetTris"`
	GenerateLODs  bool    `json:"generateLods"`
}

// Validate はパラメータが許容範囲内かを検証します。
func (p GenerateParams) Validate() error {
	if p.Prompt == "" {
		return newError("INVALID_INPUT", "prompt を指定してください。", nil)
	}
	if p.Steps < MinSteps || p.Steps > MaxSteps {
		return newError("INVALID_INPUT",
			fmt.Sprintf("steps は %d〜%d の範囲で指定してください。", MinSteps, MaxSteps), nil)
	}
	if p.GuidanceScale < MinGuidanceScale || p.GuidanceScale > MaxGuidanceScale {
		return newError("INVALID_INPUT",
			fmt.Sprintf("guidanceScale は %.1f〜%.1f の範囲で指定してください。", MinGuidanceScale, MaxGuidanceScale), nil)
	}
	if p.TargetTris < MinTargetTris || p.TargetTris > MaxTargetTris {
		return newError("INVALID_INPUT",
			fmt.Sprintf("targetTris は %d〜%d の範囲で指定してください。", MinTargetTris, MaxTargetTris), nil)
	}
	return nil
}

// Metadata は生成結果に付随するメタデータです。
type Metadata struct {
	Prompt            string              `json:"prompt"`
	Steps             int                 `json:"steps"`
	GuidanceScale     float64             `json:"guidanceScale"`
	Seed              *int64              `json:"seed,omitempty"`
	GenerationSeconds float64             `json:"generationSeconds"`
	SourceTriangles   int                 `json:"sourceTriangles"`
	OutputTriangles   int                 `json:"outputTriangles"`
	Validation        *mesh.Metrics       `json:"validation"`
	Compatibility     *mesh.Compatibility `json:"compatibility"`
}

// Error はAPI応答に変換可能なドメインエラーです。
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
