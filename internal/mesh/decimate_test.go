package mesh

import "testing"

// gridPlane は (n+1)^2 頂点・2n^2 三角形の平面メッシュを生成します。
func gridPlane(n int) *Mesh {
	m := &Mesh{}
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			m.Vertices = append(m.Vertices, [3]float64{float64(i), float64(j), 0})
		}
	}
	idx := func(i, j int) int { return j*(n+1) + i }
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			m.Faces = append(m.Faces, [3]int{idx(i, j), idx(i+1, j), idx(i, j+1)})
			m.Faces = append(m.Faces, [3]int{idx(i+1, j), idx(i+1, j+1), idx(i, j+1)})
		}
	}
	return m
}

func TestDecimateReachesBudget(t *testing.T) {
	m := gridPlane(20) // 800 tris
	target := 100

	out := Decimate(m, target)
	if out.TriangleCount() > target {
		t.Fatalf("decimated mesh exceeds budget: %d > %d", out.TriangleCount(), target)
	}
	if out.TriangleCount() == 0 {
		t.Fatal("decimation collapsed the mesh entirely")
	}
	if !out.IsValid() {
		t.Fatal("decimated mesh has invalid face indices")
	}
	// 入力は変更しない
	if m.TriangleCount() != 800 {
		t.Fatalf("input mesh mutated: %d tris", m.TriangleCount())
	}
}

func TestDecimateNoOpBelowBudget(t *testing.T) {
	m := NewBox([3]float64{1, 1, 1})
	out := Decimate(m, 2000)
	if out.TriangleCount() != 12 {
		t.Fatalf("mesh below budget must be unchanged, got %d tris", out.TriangleCount())
	}
	if out == m {
		t.Fatal("Decimate must return a copy")
	}
}

func TestDecimateNeverReturnsEmptyMesh(t *testing.T) {
	// 小さなメッシュではクラスタリングが全面を潰すことがあるが、
	// その場合でも空メッシュは返さない
	m := NewBox([3]float64{1, 1, 1})
	out := Decimate(m, 1)
	if out.TriangleCount() == 0 {
		t.Fatal("decimation returned an empty mesh")
	}
	if !out.IsValid() {
		t.Fatal("decimated mesh has invalid face indices")
	}
}

func TestGenerateLODs(t *testing.T) {
	m := gridPlane(16) // 512 tris
	lods := GenerateLODs(m, LODLevels)

	if len(lods) != 3 {
		t.Fatalf("expected 3 LODs, got %d", len(lods))
	}
	// 率1.0はフルディテールのコピー
	if lods[0].TriangleCount() != m.TriangleCount() {
		t.Fatalf("LOD0 must keep full detail: %d", lods[0].TriangleCount())
	}
	if lods[1].TriangleCount() > m.TriangleCount()/2 {
		t.Fatalf("LOD1 exceeds 0.5 budget: %d", lods[1].TriangleCount())
	}
	if lods[2].TriangleCount() > m.TriangleCount()/4 {
		t.Fatalf("LOD2 exceeds 0.25 budget: %d", lods[2].TriangleCount())
	}
	for i, lod := range lods {
		if lod.TriangleCount() == 0 {
			t.Fatalf("LOD%d is empty", i)
		}
	}
}
