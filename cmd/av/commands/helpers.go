package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"arcvault/pkg/arc"
)

// requireApp 子命令在使用全局实例前调用
func requireApp() error {
	if AV == nil {
		return fmt.Errorf("app not initialized")
	}
	return nil
}

// archiveName 返回不带扩展名的归档文件名
func archiveName(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// openArc 把单个归档加载进新的文件系统，根目录以归档名命名
func openArc(p string) (*arc.FileSystem, error) {
	fs := AV.NewFileSystem(archiveName(p))
	if err := fs.LoadArc(p, nil); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", p, err)
	}
	return fs, nil
}
