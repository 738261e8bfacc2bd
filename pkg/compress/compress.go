package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrSizeMismatch 表示解压后的长度和子头里记录的 raw_size 不一致
var ErrSizeMismatch = errors.New("decompressed size mismatch")

// Codec 是 ARC 使用的压缩算法抽象
// ARC 子头只有一个 "是否压缩" 标志位，所以读写同一个归档必须使用同一种 Codec
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	// Decompress 解压数据，rawSize 是子头中记录的原始大小，用于校验
	Decompress(data []byte, rawSize int) ([]byte, error)
}

// Default 与原版归档一致，使用 raw deflate
var Default Codec = Deflate{}

// ByName 根据配置选择压缩算法
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deflate":
		return Deflate{}, nil
	case "zstd":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %q", name)
	}
}

func checkSize(codec string, out []byte, rawSize int) ([]byte, error) {
	if rawSize >= 0 && len(out) != rawSize {
		return nil, fmt.Errorf("%s: %w: got %d bytes, expected %d", codec, ErrSizeMismatch, len(out), rawSize)
	}
	return out, nil
}

// readLimited 最多读出 rawSize+1 字节，多出的一个字节足以让 checkSize 报错
// rawSize < 0 表示长度未知，不做限制
func readLimited(r io.Reader, rawSize int) ([]byte, error) {
	if rawSize >= 0 {
		r = io.LimitReader(r, int64(rawSize)+1)
	}
	return io.ReadAll(r)
}

// -----------------------------------------------------------------------------
// Deflate (raw, 无 zlib 头)
// -----------------------------------------------------------------------------

type Deflate struct{}

func (Deflate) Name() string { return "deflate" }

func (Deflate) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("deflate writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("deflate compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("deflate close: %w", err)
	}
	return buf.Bytes(), nil
}

func (Deflate) Decompress(data []byte, rawSize int) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()

	out, err := readLimited(r, rawSize)
	if err != nil {
		return nil, fmt.Errorf("deflate decompress: %w", err)
	}
	return checkSize("deflate", out, rawSize)
}

// -----------------------------------------------------------------------------
// Zstd
// -----------------------------------------------------------------------------

// zstd.Encoder / zstd.Decoder 可以并发复用，避免每次初始化
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

type Zstd struct{}

func (Zstd) Name() string { return "zstd" }

func (Zstd) Compress(data []byte) ([]byte, error) {
	return zstdEncoder.EncodeAll(data, nil), nil
}

func (Zstd) Decompress(data []byte, rawSize int) ([]byte, error) {
	// 长度未知时走共享解码器；否则用流式解码器限制输出长度
	if rawSize < 0 {
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	}

	dec, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	out, err := readLimited(dec, rawSize)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return checkSize("zstd", out, rawSize)
}

// -----------------------------------------------------------------------------
// LZ4 (frame 格式，不可压缩的数据也能得到合法输出)
// -----------------------------------------------------------------------------

type LZ4 struct{}

func (LZ4) Name() string { return "lz4" }

func (LZ4) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (LZ4) Decompress(data []byte, rawSize int) ([]byte, error) {
	out, err := readLimited(lz4.NewReader(bytes.NewReader(data)), rawSize)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	return checkSize("lz4", out, rawSize)
}
