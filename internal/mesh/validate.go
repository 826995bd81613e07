package mesh

import "fmt"

const (
	// degenerateAreaEps 未満の面積は退化面とみなす
	degenerateAreaEps = 1e-10
	// aspectEps は最短辺ゼロ割り防止用
	aspectEps = 1e-10
	// poorAspectThreshold を超えるアスペクト比（最長辺/最短辺）は低品質
	poorAspectThreshold = 10.0

	unityMaxVertices   = 65535
	unrealMaxTriangles = 50000
)

// Metrics はメッシュ検証で得られる統計値の集合です。
type Metrics struct {
	VertexCount   int  `json:"vertexCount"`
	TriangleCount int  `json:"triangleCount"`
	EdgeCount     int  `json:"edgeCount"`
	IsWatertight  bool `json:"isWatertight"`
	IsValid       bool `json:"isValid"`

	BoundsMin   [3]float64 `json:"boundsMin"`
	BoundsMax   [3]float64 `json:"boundsMax"`
	BoundsSize  [3]float64 `json:"boundsSize"`
	SurfaceArea float64    `json:"surfaceArea"`

	DegenerateFaces        int     `json:"degenerateFaces"`
	DegenerateFacesPercent float64 `json:"degenerateFacesPercent"`
	DuplicateVertices      int     `json:"duplicateVertices"`
	UnreferencedVertices   int     `json:"unreferencedVertices"`
	MeanAspectRatio        float64 `json:"meanAspectRatio"`
	MaxAspectRatio         float64 `json:"maxAspectRatio"`
	PoorQualityTris        int     `json:"poorQualityTris"`
	PoorQualityTrisPercent float64 `json:"poorQualityTrisPercent"`

	QualityScore float64 `json:"qualityScore"`
}

// Validate はメッシュの統計値と品質スコアを計算します。
func Validate(m *Mesh) *Metrics {
	metrics := &Metrics{
		VertexCount:   m.VertexCount(),
		TriangleCount: m.TriangleCount(),
		EdgeCount:     m.UniqueEdgeCount(),
		IsWatertight:  m.IsWatertight(),
		IsValid:       m.IsValid(),
		SurfaceArea:   m.SurfaceArea(),
	}

	metrics.BoundsMin, metrics.BoundsMax = m.Bounds()
	for i := 0; i < 3; i++ {
		metrics.BoundsSize[i] = metrics.BoundsMax[i] - metrics.BoundsMin[i]
	}

	for i := range m.Faces {
		if m.FaceArea(i) < degenerateAreaEps {
			metrics.DegenerateFaces++
		}
	}

	seen := make(map[[3]float64]struct{}, len(m.Vertices))
	for _, v := range m.Vertices {
		seen[v] = struct{}{}
	}
	metrics.DuplicateVertices = len(m.Vertices) - len(seen)

	referenced := make(map[int]struct{}, len(m.Vertices))
	for _, f := range m.Faces {
		referenced[f[0]] = struct{}{}
		referenced[f[1]] = struct{}{}
		referenced[f[2]] = struct{}{}
	}
	metrics.UnreferencedVertices = len(m.Vertices) - len(referenced)

	if len(m.Faces) > 0 {
		var sum float64
		for i := range m.Faces {
			minLen, maxLen := m.faceEdgeLengths(i)
			ratio := maxLen / (minLen + aspectEps)
			sum += ratio
			if ratio > metrics.MaxAspectRatio {
				metrics.MaxAspectRatio = ratio
			}
			if ratio > poorAspectThreshold {
				metrics.PoorQualityTris++
			}
		}
		metrics.MeanAspectRatio = sum / float64(len(m.Faces))
		metrics.DegenerateFacesPercent = float64(metrics.DegenerateFaces) / float64(len(m.Faces)) * 100
		metrics.PoorQualityTrisPercent = float64(metrics.PoorQualityTris) / float64(len(m.Faces)) * 100
	}

	metrics.QualityScore = qualityScore(metrics, len(m.Vertices))
	return metrics
}

// qualityScore は100点満点から退化面率・低品質三角形率（上限20点）・
// 重複頂点率（上限10点）を減点し、[0,100] に丸めます。
func qualityScore(metrics *Metrics, vertexCount int) float64 {
	score := 100.0
	score -= metrics.DegenerateFacesPercent
	score -= min20(metrics.PoorQualityTrisPercent)
	if vertexCount > 0 {
		score -= min10(float64(metrics.DuplicateVertices) / float64(vertexCount) * 100)
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func min20(v float64) float64 {
	if v > 20 {
		return 20
	}
	return v
}

func min10(v float64) float64 {
	if v > 10 {
		return 10
	}
	return v
}

// EngineLimit はエンジン別の上限チェック結果です。
type EngineLimit struct {
	Limit        int  `json:"limit"`
	WithinLimits bool `json:"withinLimits"`
}

// Compatibility はゲームエンジン互換性チェックの結果です。
type Compatibility struct {
	PolycountRating string      `json:"polycountRating"`
	Issues          []string    `json:"issues"`
	IsGameReady     bool        `json:"isGameReady"`
	Unity           EngineLimit `json:"unity"`
	Unreal          EngineLimit `json:"unreal"`
}

// CheckCompatibility は Unity/Unreal 向けの互換性レポートを生成します。
func CheckCompatibility(m *Mesh, metrics *Metrics) *Compatibility {
	if metrics == nil {
		metrics = Validate(m)
	}

	compat := &Compatibility{
		PolycountRating: polycountRating(metrics.TriangleCount),
		Issues:          []string{},
		Unity: EngineLimit{
			Limit:        unityMaxVertices,
			WithinLimits: metrics.VertexCount <= unityMaxVertices,
		},
		Unreal: EngineLimit{
			Limit:        unrealMaxTriangles,
			WithinLimits: metrics.TriangleCount <= unrealMaxTriangles,
		},
	}

	if !metrics.IsWatertight {
		compat.Issues = append(compat.Issues, "メッシュが閉じていません（物理演算で問題が出る可能性があります）")
	}
	if !metrics.IsValid {
		compat.Issues = append(compat.Issues, "メッシュに不正なジオメトリが含まれています")
	}
	if metrics.DegenerateFaces > 0 {
		compat.Issues = append(compat.Issues, fmt.Sprintf("退化面が %d 個見つかりました", metrics.DegenerateFaces))
	}
	if metrics.TriangleCount > 0 && metrics.PoorQualityTris > metrics.TriangleCount/10 {
		compat.Issues = append(compat.Issues, "アスペクト比の悪い三角形が10%を超えています")
	}

	compat.IsGameReady = len(compat.Issues) == 0
	return compat
}

func polycountRating(tris int) string {
	switch {
	case tris < 500:
		return "Low (good for mobile)"
	case tris < 2000:
		return "Medium (good for most games)"
	case tris < 10000:
		return "High (desktop/console)"
	default:
		return "Very High (may need optimization)"
	}
}
