package arc

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"arcvault/pkg/compress"
	"arcvault/pkg/hasher"
	"arcvault/pkg/ignore"
	"arcvault/pkg/pointer"
	"arcvault/pkg/types"
)

// parsedArc 是一次完整解析 + 校验的结果，填充目录树之前不会修改任何状态
type parsedArc struct {
	path  string
	base  int64
	t16   *hashTable
	t8    *hashTable
	names map[types.NameHash]string
}

// DetectMagic 判断文件是否以 ARC 头部开始
func DetectMagic(p string) (bool, error) {
	f, err := os.Open(p)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	if _, err := io.ReadFull(f, head); err != nil {
		return false, nil
	}
	return bytes.Equal(head, arcMagic), nil
}

// readArc 解析头部、尾部数据块、两张哈希表和名字表，并完成交叉校验
func readArc(p string, codec compress.Codec, h hasher.Hasher) (*parsedArc, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	fileSize := info.Size()

	// 1. 头部
	r := bufio.NewReader(f)
	head := make([]byte, headerSize)
	n, err := io.ReadFull(r, head)
	if n >= len(warpMagic) && bytes.Equal(head[:len(warpMagic)], warpMagic) {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, p)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header of %s", ErrTruncated, p)
	}
	if !bytes.Equal(head, arcMagic) {
		return nil, fmt.Errorf("%w: %s", ErrBadMagic, p)
	}

	// 2. 尾部偏移，相对于这个字段之后的位置
	var footer int64
	if err := binary.Read(r, binary.LittleEndian, &footer); err != nil {
		return nil, fmt.Errorf("%w: footer offset of %s", ErrTruncated, p)
	}
	base := int64(headerSize + footerPtrSize)
	pos := base + footer
	if footer < 0 || pos > fileSize {
		return nil, fmt.Errorf("%w: footer offset %d beyond %d bytes", ErrTruncated, footer, fileSize)
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	r.Reset(f)

	// 3. 数据块，直到三种必需的块各出现一次
	var utf16Data, utf8Data, nameData []byte
	var have16, have8, haveNames bool
	for !have16 || !have8 || !haveNames {
		if pos+12 > fileSize {
			return nil, fmt.Errorf("%w: footer ends before all blocks were found", ErrTruncated)
		}
		var blockType int32
		var size int64
		if err := binary.Read(r, binary.LittleEndian, &blockType); err != nil {
			return nil, fmt.Errorf("%w: block type", ErrTruncated)
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			return nil, fmt.Errorf("%w: block size", ErrTruncated)
		}
		pos += 12
		if size < 0 || size > fileSize-pos {
			return nil, fmt.Errorf("%w: block %d of %d bytes", ErrTruncated, blockType, size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("%w: block %d", ErrTruncated, blockType)
		}
		pos += size

		switch blockType {
		case blockUTF16Table:
			if have16 {
				return nil, fmt.Errorf("%w: utf-16 hash table", ErrDuplicateBlock)
			}
			utf16Data, have16 = data, true
		case blockUTF8Table:
			if have8 {
				return nil, fmt.Errorf("%w: utf-8 hash table", ErrDuplicateBlock)
			}
			utf8Data, have8 = data, true
		case blockNameTable:
			if haveNames {
				return nil, fmt.Errorf("%w: name table", ErrDuplicateBlock)
			}
			if nameData, err = unpackNameBlock(data, codec); err != nil {
				return nil, err
			}
			haveNames = true
		default:
			return nil, fmt.Errorf("%w: type %d", ErrUnknownBlock, blockType)
		}
	}

	// 4. 解码
	parsed := &parsedArc{path: p, base: base}
	if parsed.t16, err = decodeHashTable(utf16Data); err != nil {
		return nil, fmt.Errorf("utf-16 table: %w", err)
	}
	if parsed.t8, err = decodeHashTable(utf8Data); err != nil {
		return nil, fmt.Errorf("utf-8 table: %w", err)
	}
	if parsed.names, err = decodeNameTable(nameData); err != nil {
		return nil, fmt.Errorf("name table: %w", err)
	}

	// 5. 校验
	if err := crossValidate(parsed.t16, parsed.t8, parsed.names, h); err != nil {
		return nil, err
	}
	if err := checkNames(parsed.t16, parsed.names); err != nil {
		return nil, err
	}
	return parsed, nil
}

// unpackNameBlock 名字表块 = 16 字节子头 + (可能被压缩的) 数据
func unpackNameBlock(data []byte, codec compress.Codec) ([]byte, error) {
	h, err := pointer.ParseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: name table header", ErrTruncated)
	}
	payload := data[pointer.HeaderSize:]
	if int64(h.Size) > int64(len(payload)) {
		return nil, fmt.Errorf("%w: name table payload", ErrTruncated)
	}
	payload = payload[:h.Size]
	if !h.Compressed {
		return payload, nil
	}
	raw, err := codec.Decompress(payload, int(h.RawSize))
	if err != nil {
		return nil, fmt.Errorf("%w: name table: %v", ErrFormat, err)
	}
	return raw, nil
}

// checkNames 填充前确认 UTF-16 表中每个条目都能解析为合法的名字
func checkNames(t *hashTable, names map[types.NameHash]string) error {
	for _, recs := range [][]tableRecord{t.Files, t.Dirs} {
		for _, rec := range recs {
			name, ok := names[rec.Hash]
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownName, rec.Hash)
			}
			if !validName(name) {
				return fmt.Errorf("%w: entry name %q", ErrFormat, name)
			}
		}
	}
	for _, sub := range t.Subdirs {
		if err := checkNames(sub, names); err != nil {
			return err
		}
	}
	return nil
}

// LoadArc 把归档内容加载到 target 下 (nil 表示 Root)
// 解析或校验失败时 target 保持不变
func (fs *FileSystem) LoadArc(p string, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return err
	}
	fs.log.Debug("loading arc", "path", p, "target", target.Path())

	parsed, err := readArc(p, fs.codec, fs.hasher)
	if err != nil {
		fs.log.Error("arc load failed", "path", p, "err", err)
		return err
	}

	if !fs.named {
		if rootName, ok := parsed.names[parsed.t16.Hash]; ok {
			if i := strings.LastIndexAny(rootName, `/\`); i >= 0 {
				rootName = rootName[i+1:]
			}
			if rootName != "" {
				fs.setName(rootName)
			}
		}
	}
	target.arcPath = types.ArcPath(p)

	count := fs.populate(parsed, parsed.t16, target)
	fs.log.Info("arc loaded", "path", p, "files", count)
	return nil
}

// populate 深度优先遍历 UTF-16 表：文件指向 base + offset，目录按名字获取或创建
func (fs *FileSystem) populate(parsed *parsedArc, t *hashTable, dir *Directory) int {
	count := 0
	for _, rec := range t.Files {
		name := parsed.names[rec.Hash]
		ptr := pointer.NewArc(parsed.path, parsed.base+rec.Offset)
		if _, err := fs.placeFile(dir, name, ptr); err != nil {
			fs.log.Verbose(3, "arc file skipped", "name", name, "err", err)
			continue
		}
		count++
		fs.log.Trace("adding arc file", "n", count, "name", name)
	}
	for i, rec := range t.Dirs {
		name := parsed.names[rec.Hash]
		sub, ok := dir.dirs[name]
		if !ok {
			sub = fs.newDirectory(name)
			fs.linkDir(sub, dir)
		}
		count += fs.populate(parsed, t.Subdirs[i], sub)
	}
	return count
}

// placeFile dir 中已有同名文件时替换其 Pointer，否则新建
func (fs *FileSystem) placeFile(dir *Directory, name string, ptr pointer.Pointer) (*File, error) {
	if existing, ok := dir.files[name]; ok {
		existing.SetPointer(ptr)
		return existing, nil
	}
	return fs.insertFile(dir, name, ptr)
}

// LoadFile 把磁盘上的单个文件加入 target
func (fs *FileSystem) LoadFile(p string, target *Directory) (*File, error) {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return nil, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrIO, p)
	}
	name := filepath.Base(p)
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	fs.log.Debug("loading file", "path", p, "target", target.Path())
	return fs.placeFile(target, name, pointer.NewDisk(p))
}

// LoadDirectory 把磁盘目录 1:1 映射到 target 下
// 目录中存在 .avignore 时，按其规则跳过文件
func (fs *FileSystem) LoadDirectory(p string, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrIO, p)
	}

	var matcher *ignore.Matcher
	if _, err := os.Stat(filepath.Join(p, ignore.IgnoreFile)); err == nil {
		if matcher, err = ignore.NewMatcher(p); err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
	}

	fs.log.Debug("loading directory", "path", p, "target", target.Path())
	count := 0
	err = filepath.WalkDir(p, func(cur string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: %v", ErrIO, walkErr)
		}
		if cur == p {
			return nil
		}
		rel, err := filepath.Rel(p, cur)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIO, err)
		}
		rel = filepath.ToSlash(rel)

		if matcher.Matches(rel) || (fs.importFilter != nil && fs.importFilter(rel)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			_, err := fs.GetOrCreateDirectory(rel, target)
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		dir, err := fs.GetOrCreateDirectory(path.Dir(rel), target)
		if err != nil {
			return err
		}
		if _, err := fs.placeFile(dir, d.Name(), pointer.NewDisk(cur)); err != nil {
			if errors.Is(err, ErrShadowed) {
				fs.log.Verbose(3, "loose file skipped", "path", rel, "err", err)
				return nil
			}
			return err
		}
		count++
		fs.log.Trace("adding file", "n", count, "path", rel)
		return nil
	})
	if err != nil {
		return err
	}
	fs.log.Info("directory loaded", "path", p, "files", count)
	return nil
}
