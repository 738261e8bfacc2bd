package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile 是散文件导入时读取的忽略规则文件名
const IgnoreFile = ".avignore"

// Matcher 封装了 gitignore 风格的匹配逻辑
// 用途有两个：导入目录时跳过文件，保存归档时挑选需要压缩的文件
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 初始化导入用的忽略匹配器
// rootPath: 被导入的目录（用于查找 .avignore 文件）
func NewMatcher(rootPath string) (*Matcher, error) {
	// 1. 系统级默认忽略规则，强制生效
	defaultRules := []string{
		// --- 工具自身 ---
		".av",      // 工具的本地元数据目录
		IgnoreFile, // 规则文件本身不应被打包
		".git",

		// --- 安全与配置 ---
		"config.yaml", // 防止 S3 Secret Key 被打进归档
		".env",

		// --- 常见垃圾文件 ---
		".DS_Store", // macOS
		"Thumbs.db", // Windows
	}

	var ignorer *gitignore.GitIgnore
	var err error

	// 2. 检查目录下是否有 .avignore
	ignoreFilePath := filepath.Join(rootPath, IgnoreFile)

	if _, errStat := os.Stat(ignoreFilePath); errStat == nil {
		// 情况 A: 用户规则与默认规则合并编译
		ignorer, err = gitignore.CompileIgnoreFileAndLines(ignoreFilePath, defaultRules...)
	} else {
		// 情况 B: 仅默认规则
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}

	if err != nil {
		return nil, err
	}

	return &Matcher{ignorer: ignorer}, nil
}

// NewPatterns 用一组 glob 编译匹配器，不带任何默认规则
// 例如归档的压缩列表 ["*.tex", "*.menu"]
func NewPatterns(patterns ...string) *Matcher {
	if len(patterns) == 0 {
		return &Matcher{}
	}
	return &Matcher{ignorer: gitignore.CompileIgnoreLines(patterns...)}
}

// Matches 检查给定的路径是否匹配规则
// path: 相对路径 (例如 "model/skin.tex") 或者单独的文件名
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(path)
}
