package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yourusername/mesh-forge/internal/mesh"
)

const glbMIME = "model/gltf-binary"

// GenerationInfo は生成処理自体の付帯情報です。
type GenerationInfo struct {
	Seconds float64
}

// Generator は学習済みテキスト→3Dモデルの呼び出しを抽象化します。
// 実体は外部の推論サーバーで、ここではブラックボックスとして扱います。
type Generator interface {
	Generate(ctx context.Context, params GenerateParams) (*mesh.Mesh, *GenerationInfo, error)
}

// HTTPGenerator は推論サーバーのHTTP APIを呼び出す Generator 実装です。
type HTTPGenerator struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// NewHTTPGenerator は HTTPGenerator を作成します。
// timeout が 0 の場合、クライアント側のタイムアウトは設けません。
func NewHTTPGenerator(baseURL string, timeout time.Duration) *HTTPGenerator {
	return &HTTPGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

type generateAPIRequest struct {
	Prompt        string  `json:"prompt"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidance_scale"`
	Seed          *int64  `json:"seed,omitempty"`
}

// Generate は推論サーバーにプロンプトを送り、返却されたGLBをメッシュに変換します。
func (g *HTTPGenerator) Generate(ctx context.Context, params GenerateParams) (*mesh.Mesh, *GenerationInfo, error) {
	body, err := json.Marshal(&generateAPIRequest{
		Prompt:        params.Prompt,
		Steps:         params.Steps,
		GuidanceScale: params.GuidanceScale,
		Seed:          params.Seed,
	})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", glbMIME)

	start := g.now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, newError("GENERATOR_UNAVAILABLE", "生成サーバーへの接続に失敗しました。", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, nil, newError("GENERATOR_ERROR",
			fmt.Sprintf("生成サーバーがエラーを返しました (status %d): %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, newError("GENERATOR_ERROR", "生成サーバー応答の読み込みに失敗しました。", err)
	}

	// デコード前に応答がGLBであることを確認する
	if mt := mimetype.Detect(payload); !mt.Is(glbMIME) {
		return nil, nil, newError("GENERATOR_BAD_PAYLOAD",
			fmt.Sprintf("生成サーバーの応答がGLBではありません (%s)。", mt.String()), nil)
	}

	m, err := mesh.DecodeGLB(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, newError("GENERATOR_BAD_PAYLOAD", "生成メッシュのデコードに失敗しました。", err)
	}

	info := &GenerationInfo{Seconds: g.now().Sub(start).Seconds()}
	if header := resp.Header.Get("X-Generation-Seconds"); header != "" {
		if seconds, parseErr := strconv.ParseFloat(header, 64); parseErr == nil {
			info.Seconds = seconds
		}
	}
	return m, info, nil
}
