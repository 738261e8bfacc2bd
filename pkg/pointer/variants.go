package pointer

import (
	"fmt"
	"io"
	"os"
	"sync"

	"arcvault/pkg/compress"
)

// -----------------------------------------------------------------------------
// ArcPointer: 归档文件中的一个数据段
// -----------------------------------------------------------------------------

// ArcPointer 指向归档文件 path 中 offset 处的 {子头, 数据}
// 每次读取都重新打开文件，不持有句柄
type ArcPointer struct {
	path   string
	offset int64

	mu     sync.Mutex
	header *Header
	cache  []byte
}

func NewArc(path string, offset int64) *ArcPointer {
	return &ArcPointer{path: path, offset: offset}
}

func (p *ArcPointer) Path() string  { return p.path }
func (p *ArcPointer) Offset() int64 { return p.offset }

// Header 读取 (并缓存) 数据段的子头
func (p *ArcPointer) Header() (Header, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.headerLocked()
}

func (p *ArcPointer) headerLocked() (Header, error) {
	if p.header != nil {
		return *p.header, nil
	}
	f, err := os.Open(p.path)
	if err != nil {
		return Header{}, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	h, err := ReadHeader(io.NewSectionReader(f, p.offset, HeaderSize))
	if err != nil {
		return Header{}, fmt.Errorf("%s@%d: %w", p.path, p.offset, err)
	}
	p.header = &h
	return h, nil
}

func (p *ArcPointer) Data() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		return p.cache, nil
	}
	h, err := p.headerLocked()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	buf := make([]byte, h.Size)
	if _, err := f.ReadAt(buf, p.offset+HeaderSize); err != nil {
		return nil, fmt.Errorf("read payload %s@%d: %w", p.path, p.offset, err)
	}
	p.cache = buf
	return buf, nil
}

// Compressed / Size / RawSize 在子头读取失败时返回零值，错误由 Data 报告
func (p *ArcPointer) Compressed() bool {
	h, _ := p.Header()
	return h.Compressed
}

func (p *ArcPointer) Size() int64 {
	h, _ := p.Header()
	return int64(h.Size)
}

func (p *ArcPointer) RawSize() int64 {
	h, _ := p.Header()
	return int64(h.RawSize)
}

func (p *ArcPointer) Compress(codec compress.Codec) (Pointer, error) {
	return compressed(p, codec)
}

func (p *ArcPointer) Decompress(codec compress.Codec) (Pointer, error) {
	return decompressed(p, codec)
}

func (p *ArcPointer) Release() {
	p.mu.Lock()
	p.cache = nil
	p.mu.Unlock()
}

// -----------------------------------------------------------------------------
// DiskPointer: 磁盘上的散文件 (未压缩)
// -----------------------------------------------------------------------------

type DiskPointer struct {
	path string

	mu    sync.Mutex
	cache []byte
}

func NewDisk(path string) *DiskPointer {
	return &DiskPointer{path: path}
}

func (p *DiskPointer) Path() string { return p.path }

func (p *DiskPointer) Data() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cache != nil {
		return p.cache, nil
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("read loose file: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	p.cache = data
	return data, nil
}

func (p *DiskPointer) Compressed() bool { return false }

func (p *DiskPointer) Size() int64 {
	p.mu.Lock()
	cached := p.cache
	p.mu.Unlock()
	if cached != nil {
		return int64(len(cached))
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func (p *DiskPointer) RawSize() int64 { return p.Size() }

func (p *DiskPointer) Compress(codec compress.Codec) (Pointer, error) {
	return compressed(p, codec)
}

func (p *DiskPointer) Decompress(codec compress.Codec) (Pointer, error) {
	return decompressed(p, codec)
}

func (p *DiskPointer) Release() {
	p.mu.Lock()
	p.cache = nil
	p.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Empty: 零字节占位，新建文件的默认 Pointer
// -----------------------------------------------------------------------------

type emptyPointer struct{}

// Empty 是全局唯一的空 Pointer
var Empty Pointer = emptyPointer{}

func (emptyPointer) Data() ([]byte, error) { return []byte{}, nil }
func (emptyPointer) Compressed() bool      { return false }
func (emptyPointer) Size() int64           { return 0 }
func (emptyPointer) RawSize() int64        { return 0 }
func (emptyPointer) Release()              {}

func (e emptyPointer) Compress(codec compress.Codec) (Pointer, error) {
	return compressed(e, codec)
}

func (e emptyPointer) Decompress(codec compress.Codec) (Pointer, error) {
	return decompressed(e, codec)
}

// -----------------------------------------------------------------------------
// MemoryPointer: 内存中的字节
// -----------------------------------------------------------------------------

type MemoryPointer struct {
	data       []byte
	compressed bool
	rawSize    int64
}

// NewMemory 用未压缩的数据创建 Pointer
func NewMemory(data []byte) *MemoryPointer {
	if data == nil {
		data = []byte{}
	}
	return &MemoryPointer{data: data, rawSize: int64(len(data))}
}

// NewCompressedMemory 用已压缩的数据创建 Pointer，rawSize 是解压后的长度
func NewCompressedMemory(data []byte, rawSize int64) *MemoryPointer {
	return &MemoryPointer{data: data, compressed: true, rawSize: rawSize}
}

func (p *MemoryPointer) Data() ([]byte, error) { return p.data, nil }
func (p *MemoryPointer) Compressed() bool      { return p.compressed }
func (p *MemoryPointer) Size() int64           { return int64(len(p.data)) }
func (p *MemoryPointer) RawSize() int64        { return p.rawSize }

func (p *MemoryPointer) Compress(codec compress.Codec) (Pointer, error) {
	return compressed(p, codec)
}

func (p *MemoryPointer) Decompress(codec compress.Codec) (Pointer, error) {
	return decompressed(p, codec)
}

// Release 对内存 Pointer 无效，数据本身就是唯一来源
func (p *MemoryPointer) Release() {}
