package hasher

import (
	"encoding/binary"
	"fmt"
	"strings"

	"arcvault/pkg/types"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/text/encoding/unicode"
)

// Hasher 是名字哈希的算法抽象
// 必须是字节的纯函数：相同输入永远得到相同输出，不持有任何状态
type Hasher interface {
	Name() string
	Sum64(data []byte) uint64
}

// 默认算法
var Default Hasher = XXHash{}

// XXHash 使用 xxhash64，速度快，分布均匀
type XXHash struct{}

func (XXHash) Name() string             { return "xxhash" }
func (XXHash) Sum64(data []byte) uint64 { return xxhash.Sum64(data) }

// Blake3 取 BLAKE3 摘要的前 8 字节 (小端) 作为 64 位哈希
type Blake3 struct{}

func (Blake3) Name() string { return "blake3" }
func (Blake3) Sum64(data []byte) uint64 {
	sum := blake3.Sum256(data)
	return binary.LittleEndian.Uint64(sum[:8])
}

// ByName 根据配置中的名字选择算法
func ByName(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xxhash", "xxh64":
		return XXHash{}, nil
	case "blake3":
		return Blake3{}, nil
	default:
		return nil, fmt.Errorf("unsupported hasher: %q", name)
	}
}

// -----------------------------------------------------------------------------
// 名字编码
// -----------------------------------------------------------------------------

// ARC 中的名字统一按 UTF-16LE (无 BOM) 存储
var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// EncodeUTF16 把名字编码为 UTF-16LE 字节
func EncodeUTF16(name string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("encode utf-16 name %q: %w", name, err)
	}
	return b, nil
}

// DecodeUTF16 把 UTF-16LE 字节还原为字符串
func DecodeUTF16(data []byte) (string, error) {
	b, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode utf-16 name: %w", err)
	}
	return string(b), nil
}

// UTF8 计算名字 UTF-8 字节的哈希 (8-bit 表)
func UTF8(h Hasher, name string) types.NameHash {
	return types.NameHash(h.Sum64([]byte(name)))
}

// UTF16 计算名字 UTF-16LE 字节的哈希 (16-bit 表)
// 编码失败的名字 (非法代理对等) 退化为逐字符替换后的结果，保证函数总能返回
func UTF16(h Hasher, name string) types.NameHash {
	b, err := EncodeUTF16(name)
	if err != nil {
		b, _ = EncodeUTF16(strings.ToValidUTF8(name, "�"))
	}
	return types.NameHash(h.Sum64(b))
}

// UTF16Len 返回名字的 UTF-16 code unit 数量 (名字表里的 length 字段)
func UTF16Len(name string) int {
	b, err := EncodeUTF16(name)
	if err != nil {
		return 0
	}
	return len(b) / 2
}
