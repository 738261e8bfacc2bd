package catalog

import (
	"time"

	"gorm.io/datatypes"
)

// Archive 是一个已索引的 .arc 文件
type Archive struct {
	// Path 是主键 (归档在磁盘上的路径)
	Path      string    `gorm:"primaryKey;type:varchar(1024)"`
	RootName  string    `gorm:"type:varchar(255)"`
	ModTime   time.Time `gorm:"index"`
	FileCount int

	// Files: 归档内全部文件路径的 JSON 数组，用于整体展示
	Files datatypes.JSON

	IndexedAt time.Time
}

// Entry 是归档中的一个文件
type Entry struct {
	ID          uint   `gorm:"primaryKey"`
	ArchivePath string `gorm:"index;type:varchar(1024);not null"`
	Path        string `gorm:"type:varchar(2048);not null"`
	Name        string `gorm:"index;type:varchar(255);not null"`
	// Ext 小写且不带 "."
	Ext        string `gorm:"index;type:varchar(32)"`
	Size       int64
	RawSize    int64
	Compressed bool
}

// TableName 强制指定表名
func (Entry) TableName() string {
	return "archive_entries"
}
