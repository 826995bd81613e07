// Package storage は生成成果物の保存先を提供します。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local はローカルファイルシステム上の成果物ストレージです。
// ジョブごとに <baseDir>/<jobID>.glb と LODバリアントを保持します。
type Local struct {
	baseDir string
}

// NewLocal は保存先ディレクトリを作成して Local を返します。
func NewLocal(baseDir string) (*Local, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir is required")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("出力ディレクトリの作成に失敗しました: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

// BaseDir は保存先ディレクトリを返します。
func (l *Local) BaseDir() string {
	return l.baseDir
}

// AssetPath はジョブのメイン成果物のパスを返します。
func (l *Local) AssetPath(jobID string) string {
	return filepath.Join(l.baseDir, jobID+".glb")
}

// LODPath はジョブのLODバリアントのパスを返します。
func (l *Local) LODPath(jobID string, level int) string {
	return filepath.Join(l.baseDir, fmt.Sprintf("%s_LOD%d.glb", jobID, level))
}

// Open は成果物ファイルを開き、ファイル情報とともに返します。
func (l *Local) Open(path string) (*os.File, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, info, nil
}

// Remove はジョブに属するすべての成果物ファイルを削除します。
func (l *Local) Remove(jobID string) error {
	if jobID == "" || strings.ContainsAny(jobID, `/\`) {
		return fmt.Errorf("invalid jobID: %q", jobID)
	}
	matches, err := filepath.Glob(filepath.Join(l.baseDir, jobID+"*.glb"))
	if err != nil {
		return err
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("成果物の削除に失敗しました: %w", err)
		}
	}
	return nil
}
