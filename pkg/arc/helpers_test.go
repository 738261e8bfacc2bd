package arc

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"arcvault/pkg/compress"
	"arcvault/pkg/hasher"
	"arcvault/pkg/pointer"
	"arcvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustFile 创建文件并放入内存数据
func mustFile(t *testing.T, fs *FileSystem, path string, data string) *File {
	t.Helper()
	f, err := fs.GetOrCreateFile(path, nil)
	require.NoError(t, err, "create %s", path)
	f.SetPointer(pointer.NewMemory([]byte(data)))
	return f
}

func mustDir(t *testing.T, fs *FileSystem, path string) *Directory {
	t.Helper()
	d, err := fs.GetOrCreateDirectory(path, nil)
	require.NoError(t, err, "mkdir %s", path)
	return d
}

// newChecked 创建文件系统，并在用例结束时检查扁平索引与树一致
func newChecked(t *testing.T, name string, opts ...Option) *FileSystem {
	t.Helper()
	fs := New(name, opts...)
	t.Cleanup(func() { requireConsistent(t, fs) })
	return fs
}

// requireConsistent 从 Root 可达的文件和目录必须恰好是索引中登记的那些
func requireConsistent(t *testing.T, fs *FileSystem) {
	t.Helper()
	files := make(map[*File]bool)
	dirs := make(map[*Directory]bool)

	var walk func(d *Directory)
	walk = func(d *Directory) {
		for name, f := range d.files {
			assert.True(t, f.valid, "file %s invalidated but linked", f.Path())
			assert.Same(t, d, f.parent, "file %s parent", name)
			files[f] = true
		}
		for name, sub := range d.dirs {
			assert.True(t, sub.valid, "dir %s invalidated but linked", sub.Path())
			assert.Same(t, d, sub.parent, "dir %s parent", name)
			dirs[sub] = true
			walk(sub)
		}
	}
	walk(fs.root)

	assert.Equal(t, len(files), fs.FileCount(), "reachable files vs index")
	for key, f := range fs.files {
		assert.True(t, files[f], "indexed file %s (%s) not reachable", key, f.Path())
		assert.Equal(t, key, f.key)
		assert.Equal(t, fs.identity(f.parent, f.name), key)
	}
	assert.Equal(t, len(dirs), len(fs.dirs), "reachable dirs vs directory set")
	for d := range fs.dirs {
		assert.True(t, dirs[d], "registered dir %s not reachable", d.Path())
	}
}

// snapshot 返回 路径 -> 内容，用于比较两棵树
func snapshot(t *testing.T, fs *FileSystem) map[string]string {
	t.Helper()
	out := make(map[string]string)
	require.NoError(t, fs.Walk(func(f *File) error {
		data, err := f.Data()
		if err != nil {
			return err
		}
		out[f.Path()] = string(data)
		return nil
	}))
	return out
}

func dirPaths(fs *FileSystem) []string {
	var out []string
	for _, d := range fs.Directories() {
		out = append(out, d.Path())
	}
	sort.Strings(out)
	return out
}

// saveAndReload 把 fs 存为文件，再加载到一个同配置的新文件系统
func saveAndReload(t *testing.T, fs *FileSystem) (*FileSystem, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.arc")
	require.NoError(t, fs.SaveFile(path))

	loaded := New("", WithKeepDuplicates(fs.KeepDuplicates()), WithHasher(fs.Hasher()), WithCodec(fs.Codec()))
	require.NoError(t, loaded.LoadArc(path, nil))
	return loaded, path
}

// -----------------------------------------------------------------------------
// 手工构造归档
// -----------------------------------------------------------------------------

// craft 描述一个只有根目录和一个文件的手工归档
type craft struct {
	Magic         []byte
	RootName      string
	FileName      string
	Content       string
	BadUTF8Hash   bool
	Blocks        []int32 // 默认 0, 1, 3
	CompressNames bool
}

func le(buf *bytes.Buffer, v any) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

func craftArc(t *testing.T, c craft) string {
	t.Helper()
	h := hasher.Default
	if c.Magic == nil {
		c.Magic = arcMagic
	}
	if c.Blocks == nil {
		c.Blocks = []int32{blockUTF16Table, blockUTF8Table, blockNameTable}
	}

	var buf bytes.Buffer
	buf.Write(c.Magic)
	// 尾部偏移 = 16 字节子头 + 内容长度
	le(&buf, int64(pointer.HeaderSize+len(c.Content)))
	buf.Write(pointer.Header{RawSize: uint32(len(c.Content)), Size: uint32(len(c.Content))}.Bytes())
	buf.WriteString(c.Content)

	table := func(rootHash, fileHash types.NameHash) []byte {
		var b bytes.Buffer
		b.Write(tableTag)
		le(&b, uint64(rootHash))
		le(&b, uint32(0)) // 目录数
		le(&b, uint32(1)) // 文件数
		le(&b, uint32(0)) // 深度
		le(&b, uint32(0))
		le(&b, uint64(fileHash))
		le(&b, uint64(0)) // 文件偏移
		return b.Bytes()
	}

	var names bytes.Buffer
	for _, n := range []string{c.FileName, c.RootName} {
		enc, err := hasher.EncodeUTF16(n)
		require.NoError(t, err)
		le(&names, uint64(hasher.UTF16(h, n)))
		le(&names, int32(len(enc)/2))
		names.Write(enc)
	}
	nameBlock := append(pointer.Header{RawSize: uint32(names.Len()), Size: uint32(names.Len())}.Bytes(), names.Bytes()...)
	if c.CompressNames {
		packed, err := compress.Default.Compress(names.Bytes())
		require.NoError(t, err)
		hdr := pointer.Header{Compressed: true, RawSize: uint32(names.Len()), Size: uint32(len(packed))}
		nameBlock = append(hdr.Bytes(), packed...)
	}

	utf8File := hasher.UTF8(h, c.FileName)
	if c.BadUTF8Hash {
		utf8File++
	}

	for _, typ := range c.Blocks {
		var payload []byte
		switch typ {
		case blockUTF16Table:
			payload = table(hasher.UTF16(h, c.RootName), hasher.UTF16(h, c.FileName))
		case blockUTF8Table:
			payload = table(hasher.UTF8(h, c.RootName), utf8File)
		case blockNameTable:
			payload = nameBlock
		}
		le(&buf, typ)
		le(&buf, int64(len(payload)))
		buf.Write(payload)
	}

	path := filepath.Join(t.TempDir(), "demo.arc")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}
