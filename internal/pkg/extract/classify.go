package extract

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// sniffBytes 有效性检查读取的最大字节数
const sniffBytes = 1000

var sourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".ts": {}, ".tsx": {}, ".jsx": {}, ".java": {},
	".cpp": {}, ".c": {}, ".cs": {}, ".rb": {}, ".go": {}, ".rs": {},
	".php": {}, ".swift": {}, ".kt": {}, ".m": {}, ".scala": {},
}

// IsSource 按扩展名判断是否为源代码文件（不区分大小写）
func IsSource(path string) bool {
	_, ok := sourceExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsValid 读取文件开头，非空白且不含 NUL 字节时视为可分析的文本
func IsValid(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, sniffBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return false
	}
	head := buf[:n]

	if len(bytes.TrimSpace(head)) == 0 {
		return false
	}
	return bytes.IndexByte(head, 0) < 0
}

// IsCandidate 源代码且内容有效
func IsCandidate(path string) bool {
	return IsSource(path) && IsValid(path)
}
