// Package arc 实现 ARC 归档的内存文件系统：条目树、树操作以及二进制读写。
//
// 单个 FileSystem 不是并发安全的，多个 goroutine 同时修改同一个实例需要调用方自行串行化。
package arc

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"arcvault/pkg/compress"
	"arcvault/pkg/hasher"
	"arcvault/pkg/ignore"
	"arcvault/pkg/logging"
	"arcvault/pkg/types"
)

// FileSystem 是条目树的聚合根
type FileSystem struct {
	root *Directory
	// dirs 是除 Root 外所有存活目录的集合
	dirs map[*Directory]struct{}
	// files 以身份键索引所有存活文件
	files map[string]*File

	keepDupes    bool
	compressList []string
	compressible *ignore.Matcher
	importFilter func(rel string) bool

	hasher hasher.Hasher
	codec  compress.Codec
	log    logging.Logger

	nextID types.EntryID
	// named 为 false 时，第一次 LoadArc 会采用归档里的根名字
	named bool
}

// Option 配置 FileSystem
type Option func(*FileSystem)

// WithKeepDuplicates 为 true 时身份键是完整路径，不同目录下允许同名文件
func WithKeepDuplicates(keep bool) Option {
	return func(fs *FileSystem) { fs.keepDupes = keep }
}

// WithCompressPatterns 设置保存时需要压缩的文件名 glob，例如 "*.tex"
func WithCompressPatterns(patterns ...string) Option {
	return func(fs *FileSystem) {
		fs.compressList = append([]string(nil), patterns...)
		fs.compressible = ignore.NewPatterns(patterns...)
	}
}

func WithHasher(h hasher.Hasher) Option {
	return func(fs *FileSystem) {
		if h != nil {
			fs.hasher = h
		}
	}
}

func WithCodec(c compress.Codec) Option {
	return func(fs *FileSystem) {
		if c != nil {
			fs.codec = c
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(fs *FileSystem) {
		if l != nil {
			fs.log = l
		}
	}
}

// WithImportFilter 导入目录时跳过返回 true 的相对路径
func WithImportFilter(skip func(rel string) bool) Option {
	return func(fs *FileSystem) { fs.importFilter = skip }
}

// New 创建一个只有 Root 的文件系统，Root 的名字就是 name
func New(name string, opts ...Option) *FileSystem {
	fs := &FileSystem{
		dirs:         make(map[*Directory]struct{}),
		files:        make(map[string]*File),
		compressible: ignore.NewPatterns(),
		hasher:       hasher.Default,
		codec:        compress.Default,
		log:          logging.Nop(),
		named:        name != "",
	}
	for _, opt := range opts {
		opt(fs)
	}
	fs.root = fs.newDirectory(name)
	fs.root.root = true
	return fs
}

func (fs *FileSystem) Root() *Directory           { return fs.root }
func (fs *FileSystem) Name() string               { return fs.root.name }
func (fs *FileSystem) KeepDuplicates() bool       { return fs.keepDupes }
func (fs *FileSystem) CompressPatterns() []string { return slices.Clone(fs.compressList) }
func (fs *FileSystem) Hasher() hasher.Hasher      { return fs.hasher }
func (fs *FileSystem) Codec() compress.Codec      { return fs.codec }
func (fs *FileSystem) Logger() logging.Logger     { return fs.log }

func (fs *FileSystem) String() string {
	return fmt.Sprintf("arc.FileSystem(%s)", fs.root.name)
}

// setName 修改 Root 的名字，也就是文件系统的名字
func (fs *FileSystem) setName(name string) {
	fs.root.setName(name)
	fs.named = true
}

// shouldCompress 压缩 glob 只匹配文件名
func (fs *FileSystem) shouldCompress(f *File) bool {
	return fs.compressible.Matches(f.name)
}

// identity 计算 dir 下名为 name 的文件的身份键
func (fs *FileSystem) identity(dir *Directory, name string) string {
	if fs.keepDupes {
		return childPath(dir, name)
	}
	return name
}

// Files 返回身份键到文件的快照
func (fs *FileSystem) Files() map[string]*File {
	return maps.Clone(fs.files)
}

// FileCount 存活文件数量
func (fs *FileSystem) FileCount() int { return len(fs.files) }

// Directories 返回除 Root 外的所有目录，按路径排序
func (fs *FileSystem) Directories() []*Directory {
	out := make([]*Directory, 0, len(fs.dirs))
	for d := range fs.dirs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Directory) int { return strings.Compare(a.Path(), b.Path()) })
	return out
}

// Walk 深度优先遍历所有文件：先当前目录的文件 (按名字)，再子目录 (按名字)
func (fs *FileSystem) Walk(fn func(f *File) error) error {
	return walkFiles(fs.root, fn)
}

func walkFiles(d *Directory, fn func(f *File) error) error {
	for _, f := range d.Files() {
		if err := fn(f); err != nil {
			return err
		}
	}
	for _, sub := range d.Directories() {
		if err := walkFiles(sub, fn); err != nil {
			return err
		}
	}
	return nil
}

// HasEntry 判断条目是否属于本文件系统且仍然存活
func (fs *FileSystem) HasEntry(e Entry) bool {
	if e == nil || isNilEntry(e) {
		return false
	}
	n := e.node()
	return n.valid && n.fs == fs
}

func isNilEntry(e Entry) bool {
	switch v := e.(type) {
	case *Directory:
		return v == nil
	case *File:
		return v == nil
	}
	return false
}

// own 是所有修改操作前的守卫
func (fs *FileSystem) own(e Entry) error {
	if e == nil || isNilEntry(e) {
		return fmt.Errorf("%w: nil entry", ErrNotFound)
	}
	n := e.node()
	if n.fs != fs {
		return fmt.Errorf("%w: %s belongs to %s", ErrCrossFilesystem, e.Path(), n.fs)
	}
	if !n.valid {
		return fmt.Errorf("%w: %s", ErrEntryInvalidated, n.name)
	}
	return nil
}

// dirOrRoot nil 表示 Root
func (fs *FileSystem) dirOrRoot(d *Directory) *Directory {
	if d == nil {
		return fs.root
	}
	return d
}

// -----------------------------------------------------------------------------
// 条目构造与链接
// -----------------------------------------------------------------------------

func (fs *FileSystem) allocID() types.EntryID {
	fs.nextID++
	return fs.nextID
}

func (fs *FileSystem) newDirectory(name string) *Directory {
	d := &Directory{
		entry: entry{fs: fs, id: fs.allocID(), valid: true},
		dirs:  make(map[string]*Directory),
		files: make(map[string]*File),
	}
	d.setName(name)
	return d
}

func (fs *FileSystem) newFile(name string) *File {
	f := &File{entry: entry{fs: fs, id: fs.allocID(), valid: true}}
	f.setName(name)
	return f
}

// linkDir 把 d 挂到 parent 下并登记到目录集合
func (fs *FileSystem) linkDir(d, parent *Directory) {
	d.parent = parent
	parent.dirs[d.name] = d
	fs.dirs[d] = struct{}{}
}

func (fs *FileSystem) unlinkDir(d *Directory) {
	if d.parent != nil {
		delete(d.parent.dirs, d.name)
	}
	delete(fs.dirs, d)
}

// linkFile 把 f 挂到 parent 下并以新的身份键登记
func (fs *FileSystem) linkFile(f *File, parent *Directory) {
	f.parent = parent
	parent.files[f.name] = f
	f.key = fs.identity(parent, f.name)
	fs.files[f.key] = f
}

func (fs *FileSystem) unlinkFile(f *File) {
	if f.parent != nil {
		delete(f.parent.files, f.name)
	}
	if fs.files[f.key] == f {
		delete(fs.files, f.key)
	}
}

// rekey 在路径变化后刷新子树中所有文件的身份键 (只在保留重名时需要)
func (fs *FileSystem) rekey(d *Directory) {
	if !fs.keepDupes {
		return
	}
	for _, f := range d.files {
		if fs.files[f.key] == f {
			delete(fs.files, f.key)
		}
		f.key = fs.identity(d, f.name)
		fs.files[f.key] = f
	}
	for _, sub := range d.dirs {
		fs.rekey(sub)
	}
}
