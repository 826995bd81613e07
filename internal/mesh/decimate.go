package mesh

import "math"

// LODLevels はLOD生成に使う既定の削減率です。
var LODLevels = []float64{1.0, 0.5, 0.25}

// Decimate は頂点クラスタリングで三角形数を targetTris 以下に削減します。
// 元の形状を近似した新しいメッシュを返し、入力は変更しません。
// 削減すると面が全消失してしまう場合は、空メッシュではなく
// 到達できた最も粗い非空の近似を返します。
func Decimate(m *Mesh, targetTris int) *Mesh {
	if targetTris < 1 {
		targetTris = 1
	}
	if m.TriangleCount() <= targetTris {
		return m.Clone()
	}

	min, max := m.Bounds()
	res := initialResolution(targetTris)
	coarsest := m.Clone()
	for {
		out := clusterToGrid(m, min, max, res)
		if out.TriangleCount() == 0 {
			return coarsest
		}
		if out.TriangleCount() <= targetTris || res == 1 {
			return out
		}
		coarsest = out
		next := res * 3 / 4
		if next >= res {
			next = res - 1
		}
		if next < 1 {
			next = 1
		}
		res = next
	}
}

// GenerateLODs は削減率ごとのLODメッシュを生成します。率1.0はコピーを返します。
func GenerateLODs(m *Mesh, levels []float64) []*Mesh {
	if len(levels) == 0 {
		levels = LODLevels
	}
	lods := make([]*Mesh, 0, len(levels))
	for _, ratio := range levels {
		if ratio >= 1.0 {
			lods = append(lods, m.Clone())
			continue
		}
		target := int(math.Round(float64(m.TriangleCount()) * ratio))
		lods = append(lods, Decimate(m, target))
	}
	return lods
}

func initialResolution(targetTris int) int {
	// 閉曲面ではクラスタ数がおよそ res^2 に比例するため平方根から始める
	res := int(math.Ceil(math.Sqrt(float64(targetTris))))
	if res < 1 {
		res = 1
	}
	if res > 512 {
		res = 512
	}
	return res
}

// clusterToGrid は各頂点を res^3 の一様グリッドに割り当て、
// 同一セルの頂点を重心で代表させます。
func clusterToGrid(m *Mesh, min, max [3]float64, res int) *Mesh {
	cellOf := func(v [3]float64) [3]int {
		var cell [3]int
		for i := 0; i < 3; i++ {
			size := max[i] - min[i]
			if size <= 0 {
				cell[i] = 0
				continue
			}
			c := int((v[i] - min[i]) / size * float64(res))
			if c < 0 {
				c = 0
			}
			if c >= res {
				c = res - 1
			}
			cell[i] = c
		}
		return cell
	}

	type cluster struct {
		sum   [3]float64
		count int
	}

	clusterIndex := make(map[[3]int]int)
	clusters := make([]*cluster, 0)
	vertexCluster := make([]int, len(m.Vertices))

	for vi, v := range m.Vertices {
		cell := cellOf(v)
		ci, ok := clusterIndex[cell]
		if !ok {
			ci = len(clusters)
			clusterIndex[cell] = ci
			clusters = append(clusters, &cluster{})
		}
		clusters[ci].sum[0] += v[0]
		clusters[ci].sum[1] += v[1]
		clusters[ci].sum[2] += v[2]
		clusters[ci].count++
		vertexCluster[vi] = ci
	}

	vertices := make([][3]float64, len(clusters))
	for i, c := range clusters {
		vertices[i] = [3]float64{
			c.sum[0] / float64(c.count),
			c.sum[1] / float64(c.count),
			c.sum[2] / float64(c.count),
		}
	}

	// セル統合で潰れた面と重複面を取り除く
	faces := make([][3]int, 0, len(m.Faces))
	seen := make(map[[3]int]struct{}, len(m.Faces))
	for _, f := range m.Faces {
		nf := [3]int{vertexCluster[f[0]], vertexCluster[f[1]], vertexCluster[f[2]]}
		if nf[0] == nf[1] || nf[1] == nf[2] || nf[2] == nf[0] {
			continue
		}
		key := canonicalFace(nf)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		faces = append(faces, nf)
	}

	return &Mesh{Vertices: vertices, Faces: faces}
}

// canonicalFace は回転対称な面を同一視するためのキーを返します。
func canonicalFace(f [3]int) [3]int {
	a, b, c := f[0], f[1], f[2]
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]int{a, b, c}
}
