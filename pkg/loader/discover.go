package loader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"arcvault/pkg/logging"
)

// ArcExt 是归档文件的扩展名
const ArcExt = ".arc"

// DefaultExclusions 是可排除的归档类别 (按文件名前缀匹配)
var DefaultExclusions = []string{
	"bg", "csv", "motion", "parts", "prioritymaterial", "script", "sound", "system", "voice",
}

// Excluded 判断归档文件名是否以某个排除前缀开头 (忽略大小写)
func Excluded(arcPath string, exclude []string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(filepath.Base(arcPath)))
	for _, prefix := range exclude {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func isArc(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ArcExt)
}

// FetchArcs 收集一组来源中的归档
// 每个来源可以是 .arc 文件本身，或者一个递归搜索 *.arc 的目录；结果排序
func FetchArcs(sources []string, exclude []string, log logging.Logger) ([]string, error) {
	if log == nil {
		log = logging.Nop()
	}
	var list []string
	keep := func(p string) {
		if prefix, ok := Excluded(p, exclude); ok {
			log.Verbose(4, "excluding arc", "type", prefix, "path", p)
			return
		}
		list = append(list, p)
	}

	for _, src := range sources {
		// 1. 直接传入的归档
		if isArc(src) {
			keep(src)
			continue
		}

		// 2. 目录：递归搜索
		err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isArc(p) {
				keep(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", src, err)
		}
	}

	slices.Sort(list)
	return list, nil
}

// Partition 把归档贪心地分配到 workers 个桶中：
// 每个归档交给当前总字节数最小的桶，相同时取下标最小的桶
func Partition(paths []string, sizes []int64, workers int) [][]string {
	workers = max(1, workers)
	buckets := make([][]string, workers)
	totals := make([]int64, workers)

	for i, p := range paths {
		idx := 0
		for w := 1; w < workers; w++ {
			if totals[w] < totals[idx] {
				idx = w
			}
		}
		buckets[idx] = append(buckets[idx], p)
		if i < len(sizes) {
			totals[idx] += sizes[i]
		}
	}
	return buckets
}
