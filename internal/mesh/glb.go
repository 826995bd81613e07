package mesh

import (
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// SaveGLB はメッシュをバイナリglTF（GLB）として保存します。
func SaveGLB(m *Mesh, path string) error {
	doc, err := buildDocument(m)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("GLBの書き込みに失敗しました: %w", err)
	}
	return nil
}

// LoadGLB はGLBファイルを読み込んでメッシュに変換します。
func LoadGLB(path string) (*Mesh, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("GLBの読み込みに失敗しました: %w", err)
	}
	return fromDocument(doc)
}

// DecodeGLB はGLBストリームを読み込んでメッシュに変換します。
func DecodeGLB(r io.Reader) (*Mesh, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("GLBのデコードに失敗しました: %w", err)
	}
	return fromDocument(doc)
}

func buildDocument(m *Mesh) (*gltf.Document, error) {
	if m == nil || len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return nil, fmt.Errorf("空のメッシュはエクスポートできません")
	}

	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, f := range m.Faces {
		indices = append(indices, uint32(f[0]), uint32(f[1]), uint32(f[2]))
	}

	doc := gltf.NewDocument()
	posAccessor := modeler.WritePosition(doc, positions)
	idxAccessor := modeler.WriteIndices(doc, indices)

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "asset",
		Primitives: []*gltf.Primitive{{
			Indices:    gltf.Index(idxAccessor),
			Attributes: gltf.PrimitiveAttributes{gltf.POSITION: posAccessor},
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: "asset",
		Mesh: gltf.Index(len(doc.Meshes) - 1),
	})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, len(doc.Nodes)-1)
	return doc, nil
}

func fromDocument(doc *gltf.Document) (*Mesh, error) {
	out := &Mesh{}
	for _, gm := range doc.Meshes {
		for _, prim := range gm.Primitives {
			posIdx, ok := prim.Attributes[gltf.POSITION]
			if !ok {
				continue
			}
			positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
			if err != nil {
				return nil, fmt.Errorf("頂点属性の読み込みに失敗しました: %w", err)
			}

			offset := len(out.Vertices)
			for _, p := range positions {
				out.Vertices = append(out.Vertices, [3]float64{float64(p[0]), float64(p[1]), float64(p[2])})
			}

			if prim.Indices == nil {
				// インデックスなしの場合は3頂点ごとに1面
				for i := 0; i+2 < len(positions); i += 3 {
					out.Faces = append(out.Faces, [3]int{offset + i, offset + i + 1, offset + i + 2})
				}
				continue
			}

			indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return nil, fmt.Errorf("面インデックスの読み込みに失敗しました: %w", err)
			}
			for i := 0; i+2 < len(indices); i += 3 {
				out.Faces = append(out.Faces, [3]int{
					offset + int(indices[i]),
					offset + int(indices[i+1]),
					offset + int(indices[i+2]),
				})
			}
		}
	}

	if len(out.Vertices) == 0 || len(out.Faces) == 0 {
		return nil, fmt.Errorf("GLBに三角形メッシュが含まれていません")
	}
	return out, nil
}
