// Package catalog 把归档内容索引到 SQL 数据库，回答 "这个文件在哪个归档里"
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"arcvault/pkg/arc"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrArchiveNotFound = errors.New("archive not found in catalog")

// batchSize 控制批量插入的行数
const batchSize = 500

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

func extOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}

// IndexArchive 用 fs 的当前内容替换 arcPath 的索引
// 归档记录和文件记录在同一个事务中写入
func (r *Repository) IndexArchive(ctx context.Context, arcPath string, fs *arc.FileSystem, modTime time.Time) error {
	// 1. 收集文件
	var entries []Entry
	var paths []string
	err := fs.Walk(func(f *arc.File) error {
		p := f.Pointer()
		entries = append(entries, Entry{
			ArchivePath: arcPath,
			Path:        f.Path(),
			Name:        f.Name(),
			Ext:         extOf(f.Name()),
			Size:        p.Size(),
			RawSize:     p.RawSize(),
			Compressed:  p.Compressed(),
		})
		paths = append(paths, f.Path())
		return nil
	})
	if err != nil {
		return err
	}

	filesJSON, err := json.Marshal(paths)
	if err != nil {
		return fmt.Errorf("failed to marshal file list: %w", err)
	}

	model := Archive{
		Path:      arcPath,
		RootName:  fs.Name(),
		ModTime:   modTime.UTC(),
		FileCount: len(entries),
		Files:     datatypes.JSON(filesJSON),
		IndexedAt: time.Now().UTC(),
	}

	// 2. 事务内替换
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			UpdateAll: true,
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("failed to index archive: %w", err)
		}

		if err := tx.Where("archive_path = ?", arcPath).Delete(&Entry{}).Error; err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(entries, batchSize).Error; err != nil {
			return fmt.Errorf("failed to index entries: %w", err)
		}
		return nil
	})
}

func (r *Repository) GetArchive(ctx context.Context, arcPath string) (*Archive, error) {
	var a Archive
	err := r.db.GetConn().WithContext(ctx).
		Where("path = ?", arcPath).
		First(&a).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RemoveArchive 删除归档及其全部文件记录
func (r *Repository) RemoveArchive(ctx context.Context, arcPath string) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("archive_path = ?", arcPath).Delete(&Entry{}).Error; err != nil {
			return err
		}
		res := tx.Where("path = ?", arcPath).Delete(&Archive{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrArchiveNotFound
		}
		return nil
	})
}

// FindByName 按文件名精确查找
func (r *Repository) FindByName(ctx context.Context, name string) ([]Entry, error) {
	var entries []Entry
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		Order("archive_path, path").
		Find(&entries).Error
	return entries, err
}

// FindByExtension 按扩展名查找 (可带或不带 "."，忽略大小写)；limit <= 0 表示不限
func (r *Repository) FindByExtension(ctx context.Context, ext string, limit int) ([]Entry, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))

	q := r.db.GetConn().WithContext(ctx).
		Where("ext = ?", ext).
		Order("archive_path, path")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []Entry
	err := q.Find(&entries).Error
	return entries, err
}

// ArchivesFor 返回包含名为 name 的文件的全部归档，已排序
func (r *Repository) ArchivesFor(ctx context.Context, name string) ([]string, error) {
	var paths []string
	err := r.db.GetConn().WithContext(ctx).
		Model(&Entry{}).
		Where("name = ?", name).
		Distinct("archive_path").
		Order("archive_path").
		Pluck("archive_path", &paths).Error
	return paths, err
}

// Archives 返回全部已索引的归档
func (r *Repository) Archives(ctx context.Context) ([]Archive, error) {
	var archives []Archive
	err := r.db.GetConn().WithContext(ctx).Order("path").Find(&archives).Error
	return archives, err
}
