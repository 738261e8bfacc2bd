package hierarchy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBOR 编码选项
var encOptions = cbor.EncOptions{
	// 1. Map Key 排序，保证相同的缓存生成相同的字节
	Sort: cbor.SortCanonical,
	// 2. 时间保留纳秒，否则修改时间比较会失败
	Time:    cbor.TimeRFC3339Nano,
	TimeTag: cbor.EncTagNone,
	// 3. 禁止不定长编码
	IndefLength: cbor.IndefLengthForbidden,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// 一个归档可能有上万个文件
	MaxArrayElements: 1 << 22,
	MaxMapPairs:      1 << 20,
	MaxNestedLevels:  16,
	IndefLength:      cbor.IndefLengthForbidden,
	DupMapKey:        cbor.DupMapKeyEnforcedAPF,
	TimeTag:          cbor.DecTagOptional,
}

var dm, _ = decOptions.DecMode()

// FileStore 把缓存保存在本地文件中
// 路径以 .cbor 结尾时使用 CBOR，否则使用带缩进的 JSON
type FileStore struct {
	path string
	mu   sync.RWMutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) isCBOR() bool {
	return strings.EqualFold(filepath.Ext(s.path), ".cbor")
}

func (s *FileStore) Load(ctx context.Context) (*Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, ErrNoCache
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy cache: %w", err)
	}
	return decode(data, s.isCBOR())
}

func (s *FileStore) Save(ctx context.Context, c *Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encode(c, s.isCBOR())
	if err != nil {
		return err
	}

	// 1. 准备目录
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 先写临时文件再 Rename，保证读到的缓存总是完整的
	tmp, err := os.CreateTemp(dir, ".hierarchy-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func encode(c *Cache, asCBOR bool) ([]byte, error) {
	if asCBOR {
		data, err := em.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal hierarchy cache: %w", err)
		}
		return data, nil
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal hierarchy cache: %w", err)
	}
	return data, nil
}

func decode(data []byte, asCBOR bool) (*Cache, error) {
	c := NewCache()
	var err error
	if asCBOR {
		err = dm.Unmarshal(data, c)
	} else {
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("corrupted hierarchy cache: %w", err)
	}
	if c.Archives == nil {
		c.Archives = make(map[string]Record)
	}
	return c, nil
}
