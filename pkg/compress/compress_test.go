package compress

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("maid.menu;skin.tex;"), 200)

	for _, name := range []string{"deflate", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			codec, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())

			packed, err := codec.Compress(payload)
			require.NoError(t, err)
			assert.Less(t, len(packed), len(payload), "重复数据应该被压缩")

			raw, err := codec.Decompress(packed, len(payload))
			require.NoError(t, err)
			assert.Equal(t, payload, raw)
		})
	}
}

func TestCodecs_Empty(t *testing.T) {
	for _, codec := range []Codec{Deflate{}, Zstd{}, LZ4{}} {
		packed, err := codec.Compress(nil)
		require.NoError(t, err)

		raw, err := codec.Decompress(packed, 0)
		require.NoError(t, err)
		assert.Empty(t, raw)
	}
}

func TestCodecs_SizeMismatch(t *testing.T) {
	packed, err := Deflate{}.Compress([]byte("hello"))
	require.NoError(t, err)

	_, err = Deflate{}.Decompress(packed, 42)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

// 子头声明的 raw_size 很小而实际数据极度膨胀时，解压只读出 raw_size+1 字节就报错
func TestCodecs_DeclaredSizeBoundsOutput(t *testing.T) {
	const inflated = 96 << 20
	zeros := make([]byte, inflated)

	for _, codec := range []Codec{Deflate{}, Zstd{}, LZ4{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			packed, err := codec.Compress(zeros)
			require.NoError(t, err)
			require.Less(t, len(packed), inflated/100)

			var before, after runtime.MemStats
			runtime.GC()
			runtime.ReadMemStats(&before)
			out, err := codec.Decompress(packed, 1024)
			runtime.ReadMemStats(&after)

			assert.ErrorIs(t, err, ErrSizeMismatch)
			assert.Nil(t, out)
			assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(32<<20), "解压输出没有被 raw_size 限制")
		})
	}
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName("brotli")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported codec")
}
