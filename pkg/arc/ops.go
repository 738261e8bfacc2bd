package arc

import (
	"errors"
	"fmt"
	"strings"

	"arcvault/pkg/pointer"
)

// ChooseWinner 同名覆盖规则：完整路径字典序更大的一方胜出
// 对应 "后加载的层覆盖先加载的层"；相等时保留 b (已存在的一方)
func ChooseWinner(a, b string) string {
	if strings.Compare(a, b) > 0 {
		return a
	}
	return b
}

// insertFile 在 dir 下新建文件，调用方保证 dir 中没有同名文件
// 不保留重名时，若其他目录已有同名文件则按 ChooseWinner 决定去留
func (fs *FileSystem) insertFile(dir *Directory, name string, ptr pointer.Pointer) (*File, error) {
	key := fs.identity(dir, name)
	if other, ok := fs.files[key]; ok {
		incoming := childPath(dir, name)
		existing := other.Path()
		if ChooseWinner(incoming, existing) != incoming {
			return nil, fmt.Errorf("%w: %s kept over %s", ErrShadowed, existing, incoming)
		}
		fs.log.Verbose(5, "file overridden", "old", existing, "new", incoming)
		fs.deleteFile(other)
	}

	f := fs.newFile(name)
	f.SetPointer(ptr)
	fs.linkFile(f, dir)
	return f, nil
}

// -----------------------------------------------------------------------------
// Delete
// -----------------------------------------------------------------------------

// DeleteFile 从父目录和扁平索引中移除文件，并使其失效
func (fs *FileSystem) DeleteFile(f *File) error {
	if err := fs.own(f); err != nil {
		return err
	}
	fs.log.Debug("deleting file", "path", f.Path())
	fs.deleteFile(f)
	return nil
}

func (fs *FileSystem) deleteFile(f *File) {
	fs.unlinkFile(f)
	f.valid = false
	f.parent = nil
}

// DeleteDirectory 删除目录；recursive 为 false 时目录必须为空。Root 不可删除
func (fs *FileSystem) DeleteDirectory(d *Directory, recursive bool) error {
	if err := fs.own(d); err != nil {
		return err
	}
	if d.root {
		return ErrRootDelete
	}
	if !recursive && d.DirectoryCount()+d.FileCount() > 0 {
		return fmt.Errorf("%w: %s", ErrNotEmpty, d.Path())
	}
	fs.log.Debug("deleting directory", "path", d.Path(), "recursive", recursive)
	fs.deleteDir(d)
	return nil
}

func (fs *FileSystem) deleteDir(d *Directory) {
	fs.clear(d)
	fs.unlinkDir(d)
	d.valid = false
	d.parent = nil
}

// clear 先删除所有后代文件，再删除后代目录
func (fs *FileSystem) clear(d *Directory) {
	for _, f := range d.Files() {
		fs.deleteFile(f)
	}
	for _, sub := range d.Directories() {
		fs.deleteDir(sub)
	}
}

// Clear 删除目录的全部内容但保留目录本身
func (fs *FileSystem) Clear(d *Directory) error {
	d = fs.dirOrRoot(d)
	if err := fs.own(d); err != nil {
		return err
	}
	fs.clear(d)
	return nil
}

// Delete 按条目类型分派
func (fs *FileSystem) Delete(e Entry, recursive bool) error {
	switch v := e.(type) {
	case *File:
		return fs.DeleteFile(v)
	case *Directory:
		return fs.DeleteDirectory(v, recursive)
	default:
		return fmt.Errorf("%w: unsupported entry %T", ErrNotFound, e)
	}
}

// -----------------------------------------------------------------------------
// Copy
// -----------------------------------------------------------------------------

// alive 检查来源条目：可以属于其他文件系统，但必须存活
func alive(e Entry) error {
	if e == nil || isNilEntry(e) {
		return fmt.Errorf("%w: nil entry", ErrNotFound)
	}
	if !e.Valid() {
		return fmt.Errorf("%w: %s", ErrEntryInvalidated, e.Name())
	}
	return nil
}

// CopyFile 在 target 下创建一个共享 Pointer 的新文件 (新 id)
// target 中已有的同名文件会被先删除；来源可以属于其他文件系统
func (fs *FileSystem) CopyFile(f *File, target *Directory) (*File, error) {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return nil, err
	}
	if err := alive(f); err != nil {
		return nil, err
	}
	return fs.copyFile(f, target)
}

func (fs *FileSystem) copyFile(f *File, target *Directory) (*File, error) {
	existing, ok := target.files[f.name]
	if ok && existing == f {
		return f, nil
	}
	// 同名覆盖的判定必须在删除之前完成
	if other, found := fs.files[fs.identity(target, f.name)]; found && other.parent != target {
		incoming := childPath(target, f.name)
		if ChooseWinner(incoming, other.Path()) != incoming {
			return nil, fmt.Errorf("%w: %s kept over %s", ErrShadowed, other.Path(), incoming)
		}
	}
	if ok {
		fs.deleteFile(existing)
	}
	fs.log.Verbose(5, "copying file", "src", f.Path(), "target", target.Path())
	return fs.insertFile(target, f.name, f.ptr)
}

// CopyDirectory 在 target 下创建 (或复用) 同名目录，然后递归复制全部内容
// 把 Root 复制进它自己的文件系统，或把目录复制进它自己的子树，都会被拒绝
func (fs *FileSystem) CopyDirectory(d *Directory, target *Directory) (*Directory, error) {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return nil, err
	}
	if err := alive(d); err != nil {
		return nil, err
	}
	if d.fs == fs {
		if d.root {
			return nil, ErrRootIntoSelf
		}
		if d.contains(&target.entry) {
			return nil, fmt.Errorf("%w: %s into %s", ErrIntoDescendant, d.Path(), target.Path())
		}
	}
	if !validName(d.name) {
		return nil, fmt.Errorf("%w: directory %q", ErrInvalidName, d.name)
	}
	fs.log.Debug("copying directory", "src", d.Path(), "target", target.Path())
	return fs.copyDir(d, target)
}

func (fs *FileSystem) copyDir(d *Directory, target *Directory) (*Directory, error) {
	dst, ok := target.dirs[d.name]
	if !ok {
		dst = fs.newDirectory(d.name)
		dst.arcPath = d.arcPath
		fs.linkDir(dst, target)
	}
	if err := fs.copyChildren(d, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// copyChildren 把 src 的文件和子目录复制到 dst；落败的同名文件被跳过
func (fs *FileSystem) copyChildren(src, dst *Directory) error {
	for _, f := range src.Files() {
		if _, err := fs.copyFile(f, dst); err != nil {
			if errors.Is(err, ErrShadowed) {
				fs.log.Debug("skipping shadowed file", "err", err)
				continue
			}
			return err
		}
	}
	for _, sub := range src.Directories() {
		if _, err := fs.copyDir(sub, dst); err != nil {
			return err
		}
	}
	return nil
}

// Copy 按条目类型分派
func (fs *FileSystem) Copy(e Entry, target *Directory) error {
	var err error
	switch v := e.(type) {
	case *File:
		_, err = fs.CopyFile(v, target)
	case *Directory:
		_, err = fs.CopyDirectory(v, target)
	default:
		err = fmt.Errorf("%w: unsupported entry %T", ErrNotFound, e)
	}
	return err
}

// -----------------------------------------------------------------------------
// Move
// -----------------------------------------------------------------------------

// MoveFile 原地改挂到 target (id 不变)，target 中同名文件被覆盖
func (fs *FileSystem) MoveFile(f *File, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(f); err != nil {
		return err
	}
	if err := fs.own(target); err != nil {
		return err
	}
	fs.moveFile(f, target)
	return nil
}

func (fs *FileSystem) moveFile(f *File, target *Directory) {
	if f.parent == target {
		return
	}
	if existing, ok := target.files[f.name]; ok {
		fs.deleteFile(existing)
	}
	fs.log.Verbose(5, "moving file", "src", f.Path(), "target", target.Path())
	fs.unlinkFile(f)
	fs.linkFile(f, target)
}

// MoveDirectory 改挂目录；target 已有同名目录时执行合并移动，然后删除已清空的来源
func (fs *FileSystem) MoveDirectory(d *Directory, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(d); err != nil {
		return err
	}
	if err := fs.own(target); err != nil {
		return err
	}
	if d.root {
		return ErrRootMove
	}
	if d.contains(&target.entry) {
		return fmt.Errorf("%w: %s into %s", ErrIntoDescendant, d.Path(), target.Path())
	}
	fs.log.Debug("moving directory", "src", d.Path(), "target", target.Path())
	fs.moveDir(d, target)
	return nil
}

func (fs *FileSystem) moveDir(d *Directory, target *Directory) {
	if d.parent == target {
		return
	}
	existing, ok := target.dirs[d.name]
	if !ok {
		fs.unlinkDir(d)
		fs.linkDir(d, target)
		fs.rekey(d)
		return
	}

	// 先摘下 d：existing 可能是 d 的祖先，d 不能再被当作合并目标找到
	fs.log.Verbose(4, "merging into existing directory", "path", existing.Path())
	fs.unlinkDir(d)
	fs.moveChildren(d, existing)
	fs.invalidateDir(d)
}

// invalidateDir 使已摘下且已清空的目录失效
func (fs *FileSystem) invalidateDir(d *Directory) {
	d.valid = false
	d.parent = nil
}

func (fs *FileSystem) moveChildren(src, dst *Directory) {
	for _, f := range src.Files() {
		fs.moveFile(f, dst)
	}
	for _, sub := range src.Directories() {
		fs.moveDir(sub, dst)
	}
}

// Move 按条目类型分派
func (fs *FileSystem) Move(e Entry, target *Directory) error {
	switch v := e.(type) {
	case *File:
		return fs.MoveFile(v, target)
	case *Directory:
		return fs.MoveDirectory(v, target)
	default:
		return fmt.Errorf("%w: unsupported entry %T", ErrNotFound, e)
	}
}

// -----------------------------------------------------------------------------
// Merge
// -----------------------------------------------------------------------------

// MergeCopy 把 src 的全部文件和子目录复制到 target，src 保持不变
// src 可以来自其他文件系统 (多归档加载的汇总步骤就是这样使用的)
func (fs *FileSystem) MergeCopy(src *Directory, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(target); err != nil {
		return err
	}
	if err := alive(src); err != nil {
		return err
	}
	if src.fs == fs {
		if src.root {
			return ErrRootIntoSelf
		}
		if src.contains(&target.entry) {
			return fmt.Errorf("%w: %s into %s", ErrIntoDescendant, src.Path(), target.Path())
		}
	}
	fs.log.Debug("merging copy", "src", src.Path(), "target", target.Path())
	return fs.copyChildren(src, target)
}

// MergeMove 把 src 的全部内容移动到 target，然后删除已清空的 src
// 跨文件系统的移动不受支持：先 MergeCopy 再删除来源
func (fs *FileSystem) MergeMove(src *Directory, target *Directory) error {
	target = fs.dirOrRoot(target)
	if err := fs.own(src); err != nil {
		return err
	}
	if err := fs.own(target); err != nil {
		return err
	}
	if src.root {
		return ErrRootIntoSelf
	}
	if src.contains(&target.entry) {
		return fmt.Errorf("%w: %s into %s", ErrIntoDescendant, src.Path(), target.Path())
	}
	fs.log.Debug("merging move", "src", src.Path(), "target", target.Path())
	fs.unlinkDir(src)
	fs.moveChildren(src, target)
	fs.invalidateDir(src)
	return nil
}

// -----------------------------------------------------------------------------
// Rename
// -----------------------------------------------------------------------------

// Rename 修改条目名字 (两种哈希随之重算)
// 与兄弟条目重名时拒绝；不保留重名时，文件还不能与其他目录中的文件重名
// 重命名 Root 等于修改文件系统的名字
func (fs *FileSystem) Rename(e Entry, name string) error {
	if err := fs.own(e); err != nil {
		return err
	}
	if !validName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if name == e.Name() {
		return nil
	}
	fs.log.Debug("renaming", "path", e.Path(), "name", name)

	switch v := e.(type) {
	case *File:
		parent := v.parent
		if _, ok := parent.files[name]; ok {
			return fmt.Errorf("%w: %s/%s", ErrNameCollision, parent.Path(), name)
		}
		if other, ok := fs.files[fs.identity(parent, name)]; ok && other != v {
			return fmt.Errorf("%w: %s", ErrNameCollision, other.Path())
		}
		fs.unlinkFile(v)
		v.setName(name)
		fs.linkFile(v, parent)
	case *Directory:
		if v.root {
			fs.setName(name)
			return nil
		}
		parent := v.parent
		if _, ok := parent.dirs[name]; ok {
			return fmt.Errorf("%w: %s/%s", ErrNameCollision, parent.Path(), name)
		}
		delete(parent.dirs, v.name)
		v.setName(name)
		parent.dirs[name] = v
		fs.rekey(v)
	}
	return nil
}
