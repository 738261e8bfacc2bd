package arc

import (
	"slices"
	"strings"

	"arcvault/pkg/hasher"
	"arcvault/pkg/pointer"
	"arcvault/pkg/types"
)

// Entry 是 Directory 和 File 的公共能力
type Entry interface {
	ID() types.EntryID
	Name() string
	UTF8Hash() types.NameHash
	UTF16Hash() types.NameHash
	// Parent 只是反向引用，Root 返回 nil
	Parent() *Directory
	Depth() int
	// Path 由 parent 链推导，Root 为 "/"
	Path() string
	FileSystem() *FileSystem
	IsFile() bool
	// Valid 删除后返回 false，之后的任何操作都会失败
	Valid() bool

	node() *entry
}

type entry struct {
	fs     *FileSystem
	id     types.EntryID
	name   string
	hash8  types.NameHash
	hash16 types.NameHash
	parent *Directory
	valid  bool
}

func (e *entry) ID() types.EntryID         { return e.id }
func (e *entry) Name() string              { return e.name }
func (e *entry) UTF8Hash() types.NameHash  { return e.hash8 }
func (e *entry) UTF16Hash() types.NameHash { return e.hash16 }
func (e *entry) Parent() *Directory        { return e.parent }
func (e *entry) FileSystem() *FileSystem   { return e.fs }
func (e *entry) Valid() bool               { return e.valid }
func (e *entry) node() *entry              { return e }

// setName 修改名字并立即重算两种哈希
func (e *entry) setName(name string) {
	e.name = name
	e.hash8 = hasher.UTF8(e.fs.hasher, name)
	e.hash16 = hasher.UTF16(e.fs.hasher, name)
}

func (e *entry) Depth() int {
	depth := 0
	for p := e.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

func (e *entry) Path() string {
	if e.parent == nil {
		return "/"
	}
	var segs []string
	for cur := e; cur.parent != nil; cur = &cur.parent.entry {
		segs = append(segs, cur.name)
	}
	slices.Reverse(segs)
	return "/" + strings.Join(segs, "/")
}

// childPath 返回 dir 下名为 name 的条目的路径
func childPath(dir *Directory, name string) string {
	if dir.parent == nil {
		return "/" + name
	}
	return dir.Path() + "/" + name
}

// -----------------------------------------------------------------------------
// Directory
// -----------------------------------------------------------------------------

// Directory 独占其子条目；子条目的 parent 只是反向引用
type Directory struct {
	entry
	dirs    map[string]*Directory
	files   map[string]*File
	root    bool
	arcPath types.ArcPath
}

func (d *Directory) IsFile() bool { return false }
func (d *Directory) IsRoot() bool { return d.root }

// ArcPath 如果该目录是某个归档的挂载点，返回归档路径
func (d *Directory) ArcPath() types.ArcPath { return d.arcPath }

func (d *Directory) DirectoryCount() int { return len(d.dirs) }
func (d *Directory) FileCount() int      { return len(d.files) }

// Directory 按名字查找直接子目录
func (d *Directory) Directory(name string) (*Directory, bool) {
	sub, ok := d.dirs[name]
	return sub, ok
}

// File 按名字查找直接子文件
func (d *Directory) File(name string) (*File, bool) {
	f, ok := d.files[name]
	return f, ok
}

// Directories 返回按名字排序的子目录
func (d *Directory) Directories() []*Directory {
	out := make([]*Directory, 0, len(d.dirs))
	for _, sub := range d.dirs {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b *Directory) int { return strings.Compare(a.name, b.name) })
	return out
}

// Files 返回按名字排序的子文件
func (d *Directory) Files() []*File {
	out := make([]*File, 0, len(d.files))
	for _, f := range d.files {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b *File) int { return strings.Compare(a.name, b.name) })
	return out
}

func (d *Directory) String() string { return d.Path() }

// contains 判断 e 是否就是 d 或位于 d 的子树中
func (d *Directory) contains(e *entry) bool {
	for cur := e; cur != nil; {
		if cur == &d.entry {
			return true
		}
		if cur.parent == nil {
			return false
		}
		cur = &cur.parent.entry
	}
	return false
}

// -----------------------------------------------------------------------------
// File
// -----------------------------------------------------------------------------

// File 持有一个 Pointer；复制文件时 Pointer 被共享而不是复制
type File struct {
	entry
	ptr pointer.Pointer
	// key 是文件在文件系统扁平索引中的键
	key string
}

func (f *File) IsFile() bool { return true }

func (f *File) Pointer() pointer.Pointer { return f.ptr }

// SetPointer 替换文件的字节来源，nil 等价于 pointer.Empty
func (f *File) SetPointer(p pointer.Pointer) {
	if p == nil {
		p = pointer.Empty
	}
	f.ptr = p
}

// Data 返回解压后的文件内容
func (f *File) Data() ([]byte, error) {
	return pointer.Contents(f.ptr, f.fs.codec)
}

func (f *File) String() string { return f.Path() }

// SourceArchive 返回文件内容所在的 .arc 路径；内容不来自归档时 ok 为 false
func SourceArchive(f *File) (string, bool) {
	if ap, ok := f.ptr.(*pointer.ArcPointer); ok {
		return ap.Path(), true
	}
	return "", false
}
