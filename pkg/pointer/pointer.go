package pointer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"arcvault/pkg/compress"
)

// HeaderSize 是每个数据段前面子头的固定长度
const HeaderSize = 16

var (
	ErrAlreadyCompressed = errors.New("pointer already compressed")
	ErrNotCompressed     = errors.New("pointer not compressed")
	ErrShortHeader       = errors.New("truncated payload header")
)

// Pointer 描述一个文件的字节来源以及压缩状态
// 多个 File 条目可以共享同一个 Pointer (复制只复制元数据)
type Pointer interface {
	// Data 返回存储形态的字节 (Compressed 为 true 时是压缩后的数据)
	// 第一次调用时读取并缓存
	Data() ([]byte, error)
	Compressed() bool
	// Size 存储形态的长度
	Size() int64
	// RawSize 解压后的长度
	RawSize() int64
	Compress(codec compress.Codec) (Pointer, error)
	Decompress(codec compress.Codec) (Pointer, error)
	// Release 释放缓存，之后的 Data 会重新读取
	Release()
}

// Header 对应数据段前的 16 字节子头:
// {compressed u32, reserved u32, raw_size u32, size u32}
type Header struct {
	Compressed bool
	RawSize    uint32
	Size       uint32
}

// ReadHeader 从 r 读取一个子头
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrShortHeader, err)
	}
	return ParseHeader(buf[:])
}

// ParseHeader 从内存中解析子头
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return Header{
		Compressed: binary.LittleEndian.Uint32(b[0:4]) != 0,
		RawSize:    binary.LittleEndian.Uint32(b[8:12]),
		Size:       binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// Bytes 按磁盘格式编码子头
func (h Header) Bytes() []byte {
	buf := make([]byte, HeaderSize)
	if h.Compressed {
		binary.LittleEndian.PutUint32(buf[0:4], 1)
	}
	// buf[4:8] 保留字段，固定为 0
	binary.LittleEndian.PutUint32(buf[8:12], h.RawSize)
	binary.LittleEndian.PutUint32(buf[12:16], h.Size)
	return buf
}

// HeaderOf 根据 Pointer 当前状态生成子头
func HeaderOf(p Pointer) Header {
	return Header{
		Compressed: p.Compressed(),
		RawSize:    uint32(p.RawSize()),
		Size:       uint32(p.Size()),
	}
}

// Contents 返回解压后的文件内容
func Contents(p Pointer, codec compress.Codec) ([]byte, error) {
	if !p.Compressed() {
		return p.Data()
	}
	raw, err := p.Decompress(codec)
	if err != nil {
		return nil, err
	}
	return raw.Data()
}

// compressed 是所有变体共用的压缩逻辑，结果总是一个内存 Pointer
func compressed(p Pointer, codec compress.Codec) (Pointer, error) {
	if p.Compressed() {
		return nil, ErrAlreadyCompressed
	}
	raw, err := p.Data()
	if err != nil {
		return nil, err
	}
	packed, err := codec.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("compress pointer: %w", err)
	}
	return &MemoryPointer{data: packed, compressed: true, rawSize: int64(len(raw))}, nil
}

func decompressed(p Pointer, codec compress.Codec) (Pointer, error) {
	if !p.Compressed() {
		return nil, ErrNotCompressed
	}
	packed, err := p.Data()
	if err != nil {
		return nil, err
	}
	raw, err := codec.Decompress(packed, int(p.RawSize()))
	if err != nil {
		return nil, fmt.Errorf("decompress pointer: %w", err)
	}
	return NewMemory(raw), nil
}
