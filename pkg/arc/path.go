package arc

import (
	"fmt"
	"slices"
	"strings"

	"arcvault/pkg/pointer"
)

// splitPath 同时接受 "/" 和 "\" 作为分隔符，空段被忽略
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' })
}

// validName 条目名不能为空，不能是 "." / ".."，不能包含分隔符
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

// walkDirs 从 parent 开始逐段下降
// "." 不移动，".." 回到上一级 (Root 的上一级仍是 Root)
// create 为 true 时自动创建缺失的目录，并返回本次新建的目录以便回滚
func (fs *FileSystem) walkDirs(segs []string, parent *Directory, create bool) (*Directory, []*Directory, error) {
	cur := parent
	var created []*Directory
	for _, seg := range segs {
		switch seg {
		case ".":
			continue
		case "..":
			if cur.parent != nil {
				cur = cur.parent
			}
			continue
		}
		sub, ok := cur.dirs[seg]
		if !ok {
			if !create {
				return nil, nil, fmt.Errorf("%w: directory %q in %s", ErrNotFound, seg, cur.Path())
			}
			sub = fs.newDirectory(seg)
			fs.linkDir(sub, cur)
			created = append(created, sub)
			fs.log.Verbose(4, "directory created", "path", sub.Path())
		}
		cur = sub
	}
	return cur, created, nil
}

// discard 撤销 walkDirs 新建的目录 (它们此时必然为空)
func (fs *FileSystem) discard(created []*Directory) {
	for _, d := range slices.Backward(created) {
		fs.unlinkDir(d)
		d.valid = false
	}
}

// GetOrCreateDirectory 解析相对 parent 的路径，缺失的目录全部自动创建
// parent 为 nil 表示 Root
func (fs *FileSystem) GetOrCreateDirectory(path string, parent *Directory) (*Directory, error) {
	parent = fs.dirOrRoot(parent)
	if err := fs.own(parent); err != nil {
		return nil, err
	}
	dir, _, err := fs.walkDirs(splitPath(path), parent, true)
	return dir, err
}

// FindDirectory 解析路径，遇到第一个缺失的段返回 ErrNotFound
func (fs *FileSystem) FindDirectory(path string, parent *Directory) (*Directory, error) {
	parent = fs.dirOrRoot(parent)
	if err := fs.own(parent); err != nil {
		return nil, err
	}
	dir, _, err := fs.walkDirs(splitPath(path), parent, false)
	return dir, err
}

// CreateDirectory 在 parent 下创建目录，已存在时返回已有的目录
func (fs *FileSystem) CreateDirectory(name string, parent *Directory) (*Directory, error) {
	return fs.GetOrCreateDirectory(name, parent)
}

// GetOrCreateFile 解析路径，缺失的中间目录自动创建；文件不存在时以空 Pointer 创建
// 新文件在同名覆盖中落败时返回 ErrShadowed，本次新建的目录会被撤销
func (fs *FileSystem) GetOrCreateFile(path string, parent *Directory) (*File, error) {
	parent = fs.dirOrRoot(parent)
	if err := fs.own(parent); err != nil {
		return nil, err
	}
	segs := splitPath(path)
	if len(segs) == 0 || !validName(segs[len(segs)-1]) {
		return nil, fmt.Errorf("%w: file path %q", ErrInvalidName, path)
	}
	name := segs[len(segs)-1]

	dir, created, err := fs.walkDirs(segs[:len(segs)-1], parent, true)
	if err != nil {
		return nil, err
	}
	if existing, ok := dir.files[name]; ok {
		return existing, nil
	}
	f, err := fs.insertFile(dir, name, pointer.Empty)
	if err != nil {
		fs.discard(created)
		return nil, err
	}
	return f, nil
}

// CreateFile 等价于 GetOrCreateFile
func (fs *FileSystem) CreateFile(path string, parent *Directory) (*File, error) {
	return fs.GetOrCreateFile(path, parent)
}

// FindFile 解析路径并返回已存在的文件
func (fs *FileSystem) FindFile(path string, parent *Directory) (*File, error) {
	parent = fs.dirOrRoot(parent)
	if err := fs.own(parent); err != nil {
		return nil, err
	}
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty file path", ErrNotFound)
	}
	dir, _, err := fs.walkDirs(segs[:len(segs)-1], parent, false)
	if err != nil {
		return nil, err
	}
	f, ok := dir.files[segs[len(segs)-1]]
	if !ok {
		return nil, fmt.Errorf("%w: file %q in %s", ErrNotFound, segs[len(segs)-1], dir.Path())
	}
	return f, nil
}
