package arc

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"arcvault/pkg/hasher"
	"arcvault/pkg/types"
)

var (
	// arcMagic 是归档头部固定的 20 字节
	arcMagic = []byte{
		0x77, 0x61, 0x72, 0x63, // "warc"
		0xFF, 0xAA, 0x45, 0xF1,
		0xE8, 0x03, 0x00, 0x00, // 1000
		0x04, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x00, 0x00,
	}
	// warpMagic 标识加密容器
	warpMagic = []byte{0x77, 0x61, 0x72, 0x70} // "warp"
	// tableTag 是每个目录块开头的 8 字节标记: 块头 32 字节，记录 16 字节
	tableTag = []byte{0x20, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00}
)

const (
	headerSize     = 20
	footerPtrSize  = 8
	tableHeadSize  = 32
	tableEntrySize = 16
	parentHashSize = 8

	// maxTableDepth 限制目录嵌套深度，读写两端一致
	maxTableDepth = 256
)

// 尾部数据块类型
const (
	blockUTF16Table int32 = 0
	blockUTF8Table  int32 = 1
	blockNameTable  int32 = 3
)

// tableRecord 是目录块中的一条 {hash, offset}
type tableRecord struct {
	Hash   types.NameHash
	Offset int64
}

// hashTable 是一个目录块的解码结果
// Subdirs 与 Dirs 一一对应
type hashTable struct {
	Hash    types.NameHash
	Depth   uint32
	Dirs    []tableRecord
	Files   []tableRecord
	Parents []types.NameHash
	Subdirs []*hashTable
}

// blockSize 目录块的字节数: 32 + 16*(目录数+文件数) + 8*深度
func blockSize(dirs, files, depth int) int64 {
	return tableHeadSize + tableEntrySize*int64(dirs+files) + parentHashSize*int64(depth)
}

// -----------------------------------------------------------------------------
// 解码
// -----------------------------------------------------------------------------

// decodeHashTable 从 data 的开头解码根目录块，并按偏移递归解码子块
// 子块位置 = 父块起点 + 子目录记录中的相对偏移
// 每个块只能被引用一次，深度不超过 maxTableDepth
func decodeHashTable(data []byte) (*hashTable, error) {
	return decodeBlock(data, 0, 0, make(map[int64]struct{}))
}

func decodeBlock(data []byte, start int64, depth uint32, seen map[int64]struct{}) (*hashTable, error) {
	if depth > maxTableDepth {
		return nil, fmt.Errorf("%w: table depth exceeds %d", ErrTooDeep, maxTableDepth)
	}
	if _, dup := seen[start]; dup {
		return nil, fmt.Errorf("%w: table block at %d referenced twice", ErrFormat, start)
	}
	seen[start] = struct{}{}
	if start < 0 || start+tableHeadSize > int64(len(data)) {
		return nil, fmt.Errorf("%w: table block at %d exceeds %d bytes", ErrTruncated, start, len(data))
	}
	b := data[start:]
	if !bytes.Equal(b[:8], tableTag) {
		return nil, fmt.Errorf("%w: at %d", ErrBadTableTag, start)
	}

	t := &hashTable{
		Hash:  types.NameHash(binary.LittleEndian.Uint64(b[8:16])),
		Depth: binary.LittleEndian.Uint32(b[24:28]),
	}
	dirCount := int64(binary.LittleEndian.Uint32(b[16:20]))
	fileCount := int64(binary.LittleEndian.Uint32(b[20:24]))
	if t.Depth != depth {
		return nil, fmt.Errorf("%w: table depth %d, expected %d", ErrFormat, t.Depth, depth)
	}

	size := blockSize(int(dirCount), int(fileCount), int(t.Depth))
	if start+size > int64(len(data)) {
		return nil, fmt.Errorf("%w: table block at %d needs %d bytes", ErrTruncated, start, size)
	}

	pos := int64(tableHeadSize)
	readRecords := func(n int64) ([]tableRecord, error) {
		out := make([]tableRecord, 0, n)
		for range n {
			off := binary.LittleEndian.Uint64(b[pos+8 : pos+16])
			if off > math.MaxInt64 {
				return nil, fmt.Errorf("%w: offset overflow", ErrFormat)
			}
			out = append(out, tableRecord{
				Hash:   types.NameHash(binary.LittleEndian.Uint64(b[pos : pos+8])),
				Offset: int64(off),
			})
			pos += tableEntrySize
		}
		return out, nil
	}

	var err error
	if t.Dirs, err = readRecords(dirCount); err != nil {
		return nil, err
	}
	if t.Files, err = readRecords(fileCount); err != nil {
		return nil, err
	}
	for range t.Depth {
		t.Parents = append(t.Parents, types.NameHash(binary.LittleEndian.Uint64(b[pos:pos+8])))
		pos += parentHashSize
	}

	// 子块必须位于父块之后，保证递归一定终止
	for _, rec := range t.Dirs {
		if rec.Offset < size {
			return nil, fmt.Errorf("%w: subtable offset %d inside parent block", ErrFormat, rec.Offset)
		}
		if rec.Offset > int64(len(data))-start {
			return nil, fmt.Errorf("%w: subtable offset %d", ErrTruncated, rec.Offset)
		}
		sub, err := decodeBlock(data, start+rec.Offset, depth+1, seen)
		if err != nil {
			return nil, err
		}
		if sub.Hash != rec.Hash {
			return nil, fmt.Errorf("%w: subtable hash %s, directory record %s", ErrFormat, sub.Hash, rec.Hash)
		}
		t.Subdirs = append(t.Subdirs, sub)
	}
	return t, nil
}

// decodeNameTable 解码 {hash u64, length i32 (UTF-16 code unit), 2*length 字节} 序列
func decodeNameTable(data []byte) (map[types.NameHash]string, error) {
	names := make(map[types.NameHash]string)
	for pos := 0; pos < len(data); {
		if pos+12 > len(data) {
			return nil, fmt.Errorf("%w: name record at %d", ErrTruncated, pos)
		}
		hash := types.NameHash(binary.LittleEndian.Uint64(data[pos : pos+8]))
		length := int32(binary.LittleEndian.Uint32(data[pos+8 : pos+12]))
		pos += 12
		if length < 0 || pos+2*int(length) > len(data) {
			return nil, fmt.Errorf("%w: name of %d units at %d", ErrTruncated, length, pos)
		}
		name, err := hasher.DecodeUTF16(data[pos : pos+2*int(length)])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		pos += 2 * int(length)
		names[hash] = name
	}
	return names, nil
}

// fileRecords 深度优先展开所有文件记录
func (t *hashTable) fileRecords() []tableRecord {
	out := append([]tableRecord(nil), t.Files...)
	for _, sub := range t.Subdirs {
		out = append(out, sub.fileRecords()...)
	}
	return out
}

// crossValidate 对 UTF-16 表的每个文件记录，用名字表解析出名字，
// 重新计算 UTF-8 哈希，必须等于 UTF-8 表中同一偏移的记录
func crossValidate(t16, t8 *hashTable, names map[types.NameHash]string, h hasher.Hasher) error {
	byOffset := make(map[int64]types.NameHash)
	for _, rec := range t8.fileRecords() {
		byOffset[rec.Offset] = rec.Hash
	}
	for _, rec := range t16.fileRecords() {
		name, ok := names[rec.Hash]
		if !ok {
			return fmt.Errorf("%w: file %s", ErrUnknownName, rec.Hash)
		}
		h8, ok := byOffset[rec.Offset]
		if !ok {
			return fmt.Errorf("%w: %q has no utf-8 record at offset %d", ErrChecksum, name, rec.Offset)
		}
		if hasher.UTF8(h, name) != h8 {
			return fmt.Errorf("%w: %q at offset %d", ErrChecksum, name, rec.Offset)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// 编码
// -----------------------------------------------------------------------------

// tableFlavor 选择某种哈希
type tableFlavor func(e *entry) types.NameHash

func flavor16(e *entry) types.NameHash { return e.hash16 }
func flavor8(e *entry) types.NameHash  { return e.hash8 }

// sortedByHash 子目录按哈希升序，哈希相同时按名字
func sortedByHash(d *Directory, hashOf tableFlavor) []*Directory {
	subs := d.Directories()
	slices.SortStableFunc(subs, func(a, b *Directory) int {
		return cmp.Compare(hashOf(&a.entry), hashOf(&b.entry))
	})
	return subs
}

// layoutOffsets 为某种哈希计算每个目录的相对偏移 (entry id -> offset)
// 深度优先、同级按哈希升序；目录的值 = 全局计数 - 所有祖先已记录值之和，
// 因此每个值都是相对于直接父目录块起点的偏移
func layoutOffsets(root *Directory, hashOf tableFlavor) map[types.EntryID]int64 {
	offsets := make(map[types.EntryID]int64)
	var global int64

	var walk func(d *Directory, depth int)
	walk = func(d *Directory, depth int) {
		var delta int64
		for p := d.parent; p != nil; p = p.parent {
			delta += offsets[p.id]
		}
		offsets[d.id] = global - delta
		global += blockSize(len(d.dirs), len(d.files), depth)

		for _, sub := range sortedByHash(d, hashOf) {
			walk(sub, depth+1)
		}
	}
	walk(root, 0)
	return offsets
}

// buildHashTable 把目录树转换为 hashTable
// 目录记录按相对偏移排序，文件记录按哈希排序，祖先哈希按 Root 到父目录的顺序
func buildHashTable(d *Directory, depth int, hashOf tableFlavor, dirOffsets, fileOffsets map[types.EntryID]int64) *hashTable {
	t := &hashTable{Hash: hashOf(&d.entry), Depth: uint32(depth)}

	subs := d.Directories()
	slices.SortStableFunc(subs, func(a, b *Directory) int {
		return cmp.Compare(dirOffsets[a.id], dirOffsets[b.id])
	})
	for _, sub := range subs {
		t.Dirs = append(t.Dirs, tableRecord{Hash: hashOf(&sub.entry), Offset: dirOffsets[sub.id]})
		t.Subdirs = append(t.Subdirs, buildHashTable(sub, depth+1, hashOf, dirOffsets, fileOffsets))
	}

	files := d.Files()
	slices.SortStableFunc(files, func(a, b *File) int {
		return cmp.Compare(hashOf(&a.entry), hashOf(&b.entry))
	})
	for _, f := range files {
		t.Files = append(t.Files, tableRecord{Hash: hashOf(&f.entry), Offset: fileOffsets[f.id]})
	}

	for p := d.parent; p != nil; p = p.parent {
		t.Parents = append(t.Parents, hashOf(&p.entry))
	}
	// 上面是从父目录到 Root 的顺序，写入时要反过来
	for i, j := 0, len(t.Parents)-1; i < j; i, j = i+1, j-1 {
		t.Parents[i], t.Parents[j] = t.Parents[j], t.Parents[i]
	}
	return t
}

// encode 按深度优先顺序写出目录块和所有子块
func (t *hashTable) encode(buf *bytes.Buffer) {
	var scratch [8]byte
	u32 := func(v uint32) {
		binary.LittleEndian.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	}
	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(scratch[:], v)
		buf.Write(scratch[:])
	}

	buf.Write(tableTag)
	u64(uint64(t.Hash))
	u32(uint32(len(t.Dirs)))
	u32(uint32(len(t.Files)))
	u32(t.Depth)
	u32(0)
	for _, rec := range t.Dirs {
		u64(uint64(rec.Hash))
		u64(uint64(rec.Offset))
	}
	for _, rec := range t.Files {
		u64(uint64(rec.Hash))
		u64(uint64(rec.Offset))
	}
	for _, p := range t.Parents {
		u64(uint64(p))
	}
	for _, sub := range t.Subdirs {
		sub.encode(buf)
	}
}

// encodeNameTable 名字表按名字去重，覆盖所有文件、目录以及 Root
// 哈希使用 UTF-16 表的哈希
func encodeNameTable(fs *FileSystem) ([]byte, error) {
	var buf bytes.Buffer
	seen := make(map[string]struct{})
	var scratch [8]byte

	add := func(e *entry) error {
		if _, ok := seen[e.name]; ok {
			return nil
		}
		seen[e.name] = struct{}{}
		encoded, err := hasher.EncodeUTF16(e.name)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(scratch[:], uint64(e.hash16))
		buf.Write(scratch[:])
		binary.LittleEndian.PutUint32(scratch[:4], uint32(len(encoded)/2))
		buf.Write(scratch[:4])
		buf.Write(encoded)
		return nil
	}

	err := fs.Walk(func(f *File) error { return add(&f.entry) })
	if err != nil {
		return nil, err
	}
	for _, d := range fs.Directories() {
		if err := add(&d.entry); err != nil {
			return nil, err
		}
	}
	if err := add(&fs.root.entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
