package arc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"arcvault/pkg/pointer"
	"arcvault/pkg/types"
)

// Save 把整个文件系统写成 ARC 格式
// w 必须可以 Seek，用于回填尾部偏移
func (fs *FileSystem) Save(w io.WriteSeeker) error {
	fs.log.Info("saving arc", "name", fs.Name(), "files", len(fs.files))

	for d := range fs.dirs {
		if d.Depth() > maxTableDepth {
			return fmt.Errorf("%w: %s", ErrTooDeep, d.Path())
		}
	}

	start, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("%w: stream not seekable: %v", ErrIO, err)
	}
	bw := bufio.NewWriter(w)

	// 1. 头部 + 预留的尾部偏移
	bw.Write(arcMagic)
	bw.Write(make([]byte, footerPtrSize))
	base := start + headerSize + footerPtrSize
	pos := base

	// 2. 文件数据，按深度优先、名字排序的顺序
	var files []*File
	_ = fs.Walk(func(f *File) error {
		files = append(files, f)
		return nil
	})

	fileOffsets := make(map[types.EntryID]int64, len(files))
	for i, f := range files {
		p := f.ptr
		if fs.shouldCompress(f) && !p.Compressed() {
			if p, err = p.Compress(fs.codec); err != nil {
				return fmt.Errorf("%w: compress %s: %v", ErrIO, f.Path(), err)
			}
		}
		data, err := p.Data()
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", ErrIO, f.Path(), err)
		}
		if int64(len(data)) > math.MaxUint32 || p.RawSize() > math.MaxUint32 {
			return fmt.Errorf("%w: %s exceeds 4 GiB", ErrFormat, f.Path())
		}

		h := pointer.Header{Compressed: p.Compressed(), RawSize: uint32(p.RawSize()), Size: uint32(len(data))}
		fileOffsets[f.id] = pos - base
		bw.Write(h.Bytes())
		if _, err := bw.Write(data); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		pos += pointer.HeaderSize + int64(len(data))
		p.Release()

		fs.log.Trace("packing file", "n", i+1, "total", len(files), "path", f.Path())
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	// 3. 回填尾部偏移
	if err := backfill(w, start+headerSize, pos-base, pos); err != nil {
		return err
	}

	// 4. 尾部: UTF-16 表, UTF-8 表, 名字表
	for _, block := range []struct {
		typ    int32
		hashOf tableFlavor
	}{
		{blockUTF16Table, flavor16},
		{blockUTF8Table, flavor8},
	} {
		offsets := layoutOffsets(fs.root, block.hashOf)
		table := buildHashTable(fs.root, 0, block.hashOf, offsets, fileOffsets)
		var buf bytes.Buffer
		table.encode(&buf)
		writeBlock(bw, block.typ, buf.Bytes())
	}

	names, err := encodeNameTable(fs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	packed, err := fs.codec.Compress(names)
	if err != nil {
		return fmt.Errorf("%w: compress name table: %v", ErrIO, err)
	}
	nameHeader := pointer.Header{Compressed: true, RawSize: uint32(len(names)), Size: uint32(len(packed))}
	writeBlock(bw, blockNameTable, append(nameHeader.Bytes(), packed...))

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	fs.log.Debug("arc saved", "files", len(files), "dirs", len(fs.dirs))
	return nil
}

func backfill(w io.WriteSeeker, at, value, resume int64) error {
	if _, err := w.Seek(at, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := binary.Write(w, binary.LittleEndian, value); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if _, err := w.Seek(resume, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// writeBlock 写出 {type i32, size i64, payload}，错误在 Flush 时统一返回
func writeBlock(bw *bufio.Writer, typ int32, payload []byte) {
	var head [12]byte
	binary.LittleEndian.PutUint32(head[0:4], uint32(typ))
	binary.LittleEndian.PutUint64(head[4:12], uint64(len(payload)))
	bw.Write(head[:])
	bw.Write(payload)
}

// SaveFile 先写临时文件再改名，失败时不会留下半个归档
func (fs *FileSystem) SaveFile(p string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmp, err := os.CreateTemp(dir, ".arc-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // 改名成功后这里什么也不做

	if err := fs.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
