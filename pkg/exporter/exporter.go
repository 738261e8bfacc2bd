// Package exporter 把文件系统中的条目还原到磁盘或写出到 io.Writer
package exporter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"arcvault/pkg/arc"
	"arcvault/pkg/logging"
)

type Exporter struct {
	log logging.Logger
}

func NewExporter(log logging.Logger) *Exporter {
	if log == nil {
		log = logging.Nop()
	}
	return &Exporter{log: log}
}

// ExportFile 把文件解压后的内容写入 writer
func (e *Exporter) ExportFile(f *arc.File, writer io.Writer) error {
	data, err := f.Data()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Path(), err)
	}
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Path(), err)
	}
	return nil
}

// RestoreCallback 在每个文件写出后调用
type RestoreCallback func(path string, f *arc.File, size int64)

// RestoreTree 递归地将目录还原到 targetDir
func (e *Exporter) RestoreTree(ctx context.Context, dir *arc.Directory, targetDir string, onRestore RestoreCallback) error {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", targetDir, err)
	}

	// 1. 文件
	for _, f := range dir.Files() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fullPath := filepath.Join(targetDir, f.Name())
		size, err := e.writeFile(f, fullPath)
		if err != nil {
			return err
		}
		e.log.Verbose(4, "file restored", "path", fullPath, "size", size)
		if onRestore != nil {
			onRestore(fullPath, f, size)
		}
	}

	// 2. 子目录：创建目录 -> 递归
	for _, sub := range dir.Directories() {
		if err := e.RestoreTree(ctx, sub, filepath.Join(targetDir, sub.Name()), onRestore); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeFile(f *arc.File, fullPath string) (int64, error) {
	file, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", fullPath, err)
	}

	cw := &countingWriter{w: file}
	if err := e.ExportFile(f, cw); err != nil {
		file.Close()
		return 0, err
	}
	if err := file.Close(); err != nil {
		return 0, err
	}
	// 内容已经读出，释放归档指针缓存的数据
	f.Pointer().Release()
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
