// Package storage 保存和取回完整的 .arc 归档文件
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrNotFound   = errors.New("archive not found")
	ErrInvalidKey = errors.New("invalid archive key")
)

// Store 是归档的远端或本地仓库
// key 是 "/" 分隔的相对路径，例如 "gamedata/model.arc"
type Store interface {
	// Put 写入 (或覆盖) 一个归档
	Put(ctx context.Context, key string, r io.Reader) error

	// Get 返回流式读取器，调用方负责 Close
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	Has(ctx context.Context, key string) (bool, error)

	// List 返回以 prefix 开头的全部 key，已排序
	List(ctx context.Context, prefix string) ([]string, error)
}

// CleanKey 统一 key 的写法：反斜杠转为 "/"，去掉前导 "/"，拒绝越界的 ".."
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" || strings.HasPrefix(key, "../") || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
