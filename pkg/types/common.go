// pkg/types/common.go
package types

import "fmt"

// NameHash 是名字在某种编码下的 64 位哈希
// ARC 的两张哈希表分别使用 UTF-8 和 UTF-16 两种编码的哈希
type NameHash uint64

func (h NameHash) String() string { return fmt.Sprintf("%016x", uint64(h)) }

// EntryID 是条目在单个文件系统内的唯一编号
// 只在构造时从计数器分配一次，永不复用，不会被持久化
type EntryID uint64

func (id EntryID) IsZero() bool { return id == 0 }

// ArcPath 是磁盘上 .arc 文件的路径
type ArcPath string

func (p ArcPath) String() string { return string(p) }
