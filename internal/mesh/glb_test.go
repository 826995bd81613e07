package mesh

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadGLB(t *testing.T) {
	m := NewBox([3]float64{2, 1, 0.5})
	path := filepath.Join(t.TempDir(), "box.glb")

	if err := SaveGLB(m, path); err != nil {
		t.Fatalf("SaveGLB failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("output file is empty")
	}

	loaded, err := LoadGLB(path)
	if err != nil {
		t.Fatalf("LoadGLB failed: %v", err)
	}
	if loaded.VertexCount() != m.VertexCount() {
		t.Fatalf("vertex count mismatch: got %d want %d", loaded.VertexCount(), m.VertexCount())
	}
	if loaded.TriangleCount() != m.TriangleCount() {
		t.Fatalf("triangle count mismatch: got %d want %d", loaded.TriangleCount(), m.TriangleCount())
	}
	if !loaded.IsWatertight() {
		t.Fatal("roundtripped box must stay watertight")
	}
}

func TestSaveGLBRejectsEmptyMesh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.glb")
	if err := SaveGLB(&Mesh{}, path); err == nil {
		t.Fatal("expected error for empty mesh")
	}
}
