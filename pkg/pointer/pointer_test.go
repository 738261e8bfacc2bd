package pointer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"arcvault/pkg/compress"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSegment 生成一个 "前缀 + 子头 + 数据" 的文件，返回数据段偏移
func writeSegment(t *testing.T, prefix int, h Header, payload []byte) (string, int64) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, prefix))
	buf.Write(h.Bytes())
	buf.Write(payload)

	path := filepath.Join(t.TempDir(), "seg.arc")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path, int64(prefix)
}

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{Compressed: true, RawSize: 1024, Size: 77}
	b := h.Bytes()
	require.Len(t, b, HeaderSize)
	assert.Equal(t, []byte{0, 0, 0, 0}, b[4:8], "保留字段必须为 0")

	got, err := ParseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = ParseHeader(b[:10])
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestArcPointer_Uncompressed(t *testing.T) {
	payload := []byte("hi!\n")
	path, off := writeSegment(t, 28, Header{RawSize: 4, Size: 4}, payload)

	p := NewArc(path, off)
	assert.False(t, p.Compressed())
	assert.EqualValues(t, 4, p.Size())
	assert.EqualValues(t, 4, p.RawSize())

	data, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// 未压缩的 Pointer 不能再解压
	_, err = p.Decompress(compress.Default)
	assert.ErrorIs(t, err, ErrNotCompressed)
}

func TestArcPointer_Compressed(t *testing.T) {
	raw := bytes.Repeat([]byte("abc"), 100)
	packed, err := compress.Default.Compress(raw)
	require.NoError(t, err)

	path, off := writeSegment(t, 0, Header{Compressed: true, RawSize: uint32(len(raw)), Size: uint32(len(packed))}, packed)
	p := NewArc(path, off)
	require.True(t, p.Compressed())

	_, err = p.Compress(compress.Default)
	assert.ErrorIs(t, err, ErrAlreadyCompressed)

	got, err := Contents(p, compress.Default)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestArcPointer_ReleaseRereads(t *testing.T) {
	path, off := writeSegment(t, 4, Header{RawSize: 3, Size: 3}, []byte("abc"))
	p := NewArc(path, off)

	first, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), first)

	// 改写磁盘内容后，缓存仍然生效
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(raw[off+HeaderSize:], "xyz")
	require.NoError(t, os.WriteFile(path, raw, 0644))

	cached, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), cached)

	p.Release()
	fresh, err := p.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), fresh)
}

func TestArcPointer_Missing(t *testing.T) {
	p := NewArc(filepath.Join(t.TempDir(), "nope.arc"), 0)
	_, err := p.Data()
	assert.Error(t, err)
	assert.EqualValues(t, 0, p.Size())
}

func TestDiskPointer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skin.tex")
	require.NoError(t, os.WriteFile(path, []byte("texture"), 0644))

	p := NewDisk(path)
	assert.False(t, p.Compressed())
	assert.EqualValues(t, 7, p.Size())
	assert.EqualValues(t, 7, p.RawSize())

	for _, codec := range []compress.Codec{compress.Deflate{}, compress.Zstd{}, compress.LZ4{}} {
		packed, err := p.Compress(codec)
		require.NoError(t, err)
		assert.True(t, packed.Compressed())
		assert.EqualValues(t, 7, packed.RawSize())

		got, err := Contents(packed, codec)
		require.NoError(t, err)
		assert.Equal(t, []byte("texture"), got)
	}
}

func TestEmpty(t *testing.T) {
	data, err := Empty.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
	assert.False(t, Empty.Compressed())
	assert.Zero(t, Empty.Size())

	packed, err := Empty.Compress(compress.Default)
	require.NoError(t, err)
	got, err := Contents(packed, compress.Default)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryPointer(t *testing.T) {
	p := NewMemory([]byte("menu"))
	assert.Equal(t, Header{RawSize: 4, Size: 4}, HeaderOf(p))

	packed, err := p.Compress(compress.Zstd{})
	require.NoError(t, err)
	h := HeaderOf(packed)
	assert.True(t, h.Compressed)
	assert.EqualValues(t, 4, h.RawSize)

	back, err := packed.Decompress(compress.Zstd{})
	require.NoError(t, err)
	data, err := back.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte("menu"), data)
}
