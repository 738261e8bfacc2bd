package arc

import (
	"errors"
	"fmt"
)

// 错误分类。具体错误都包装其中之一，调用方用 errors.Is 判断类别
var (
	// ErrFormat 归档格式错误，整个加载失败，目标目录不会被修改
	ErrFormat = errors.New("invalid arc format")
	// ErrEncrypted 加密 (warp) 容器，只识别不解析
	ErrEncrypted = errors.New("warp container detected, decrypt the archive first")
	// ErrNotFound 路径中某个目录或文件不存在
	ErrNotFound = errors.New("entry not found")
	// ErrCrossFilesystem 操作跨越了两个文件系统实例
	ErrCrossFilesystem = errors.New("cross filesystem operation not supported")
	// ErrInvariant 操作会破坏树的不变量，树保持原样
	ErrInvariant = errors.New("operation violates tree invariant")
	// ErrIO 磁盘文件或流不可读写
	ErrIO = errors.New("arc i/o error")
	// ErrShadowed 新文件在同名覆盖规则中落败，未被加入
	ErrShadowed = errors.New("file shadowed by a higher priority path")
)

// 格式错误
var (
	ErrBadMagic       = fmt.Errorf("%w: bad header magic", ErrFormat)
	ErrUnknownBlock   = fmt.Errorf("%w: unknown footer block", ErrFormat)
	ErrDuplicateBlock = fmt.Errorf("%w: duplicate footer block", ErrFormat)
	ErrBadTableTag    = fmt.Errorf("%w: bad hash table tag", ErrFormat)
	ErrChecksum       = fmt.Errorf("%w: file checksum mismatch", ErrFormat)
	ErrTruncated      = fmt.Errorf("%w: truncated data", ErrFormat)
	ErrUnknownName    = fmt.Errorf("%w: hash missing from name table", ErrFormat)
	ErrTooDeep        = fmt.Errorf("%w: directory nesting too deep", ErrFormat)
)

// 不变量错误
var (
	ErrRootDelete       = fmt.Errorf("%w: cannot delete root directory", ErrInvariant)
	ErrRootMove         = fmt.Errorf("%w: cannot move root directory", ErrInvariant)
	ErrNotEmpty         = fmt.Errorf("%w: directory not empty", ErrInvariant)
	ErrRootIntoSelf     = fmt.Errorf("%w: cannot copy root into its own filesystem", ErrInvariant)
	ErrIntoDescendant   = fmt.Errorf("%w: cannot place a directory inside its own subtree", ErrInvariant)
	ErrNameCollision    = fmt.Errorf("%w: name already used by a sibling", ErrInvariant)
	ErrInvalidName      = fmt.Errorf("%w: invalid entry name", ErrInvariant)
	ErrEntryInvalidated = fmt.Errorf("%w: entry has been deleted", ErrInvariant)
)
