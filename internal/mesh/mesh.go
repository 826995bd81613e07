// Package mesh は三角形メッシュの表現と幾何計算を提供します。
package mesh

import "math"

// Mesh は三角形メッシュを表します。Faces の各要素は Vertices のインデックスです。
type Mesh struct {
	Vertices [][3]float64
	Faces    [][3]int
}

// Clone はメッシュの深いコピーを返します。
func (m *Mesh) Clone() *Mesh {
	out := &Mesh{
		Vertices: make([][3]float64, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	return out
}

// VertexCount は頂点数を返します。
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount は三角形数を返します。
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

type edgeKey struct {
	a, b int
}

func newEdgeKey(a, b int) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

func (m *Mesh) edgeUse() map[edgeKey]int {
	use := make(map[edgeKey]int, len(m.Faces)*3/2)
	for _, f := range m.Faces {
		use[newEdgeKey(f[0], f[1])]++
		use[newEdgeKey(f[1], f[2])]++
		use[newEdgeKey(f[2], f[0])]++
	}
	return use
}

// UniqueEdgeCount は重複を除いた辺の数を返します。
func (m *Mesh) UniqueEdgeCount() int {
	return len(m.edgeUse())
}

// IsWatertight はすべての辺がちょうど2つの面に共有されているかを返します。
// 穴のない閉曲面であることの簡易判定です。
func (m *Mesh) IsWatertight() bool {
	if len(m.Faces) == 0 {
		return false
	}
	for _, n := range m.edgeUse() {
		if n != 2 {
			return false
		}
	}
	return true
}

// IsValid は面インデックスがすべて頂点配列の範囲内かを返します。
func (m *Mesh) IsValid() bool {
	for _, f := range m.Faces {
		for _, idx := range f {
			if idx < 0 || idx >= len(m.Vertices) {
				return false
			}
		}
	}
	return true
}

// Bounds はバウンディングボックスの最小・最大座標を返します。
func (m *Mesh) Bounds() (min, max [3]float64) {
	if len(m.Vertices) == 0 {
		return min, max
	}
	min = m.Vertices[0]
	max = m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// SurfaceArea は全三角形の面積の合計を返します。
func (m *Mesh) SurfaceArea() float64 {
	var total float64
	for i := range m.Faces {
		total += m.FaceArea(i)
	}
	return total
}

// FaceArea は指定した面の面積を返します。
func (m *Mesh) FaceArea(face int) float64 {
	f := m.Faces[face]
	a := m.Vertices[f[0]]
	b := m.Vertices[f[1]]
	c := m.Vertices[f[2]]
	ab := [3]float64{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	ac := [3]float64{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	cross := [3]float64{
		ab[1]*ac[2] - ab[2]*ac[1],
		ab[2]*ac[0] - ab[0]*ac[2],
		ab[0]*ac[1] - ab[1]*ac[0],
	}
	return 0.5 * math.Sqrt(cross[0]*cross[0]+cross[1]*cross[1]+cross[2]*cross[2])
}

func (m *Mesh) faceEdgeLengths(face int) (minLen, maxLen float64) {
	f := m.Faces[face]
	for i := 0; i < 3; i++ {
		a := m.Vertices[f[i]]
		b := m.Vertices[f[(i+1)%3]]
		d := math.Sqrt(sq(b[0]-a[0]) + sq(b[1]-a[1]) + sq(b[2]-a[2]))
		if i == 0 || d < minLen {
			minLen = d
		}
		if i == 0 || d > maxLen {
			maxLen = d
		}
	}
	return minLen, maxLen
}

func sq(v float64) float64 {
	return v * v
}

// NewBox はテストやフォールバック用の直方体メッシュを生成します。
func NewBox(extents [3]float64) *Mesh {
	hx, hy, hz := extents[0]/2, extents[1]/2, extents[2]/2
	vertices := [][3]float64{
		{-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, hy, -hz}, {-hx, hy, -hz},
		{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz},
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2},
		{4, 5, 6}, {4, 6, 7},
		{0, 1, 5}, {0, 5, 4},
		{1, 2, 6}, {1, 6, 5},
		{2, 3, 7}, {2, 7, 6},
		{3, 0, 4}, {3, 4, 7},
	}
	return &Mesh{Vertices: vertices, Faces: faces}
}
