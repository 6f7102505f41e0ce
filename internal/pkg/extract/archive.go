package extract

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultMaxPathLength 解压后完整路径的长度上限
const DefaultMaxPathLength = 240

var ErrCorruptArchive = errors.New("压缩包损坏或无法解压")

// 跳过原因
const (
	ReasonPathTooLong = "path_too_long"
	ReasonJunk        = "junk"
	ReasonDirectory   = "directory"
	ReasonEnvironment = "environment"
	ReasonBinary      = "binary"
	ReasonUnsafePath  = "unsafe_path"
	ReasonSymlink     = "symlink"
	ReasonTooLarge    = "too_large"
	ReasonUnreadable  = "unreadable"
)

// 依赖、构建产物、编辑器目录，以及按名称跳过的构建配置文件
var junkNames = map[string]struct{}{
	"node_modules": {}, ".git": {}, "dist": {}, "__pycache__": {}, "venv": {},
	".idea": {}, ".vscode": {}, "build": {}, "target": {},
	"eslint.config.js": {}, "vite.config.js": {},
}

// 虚拟环境 / 解释器安装目录的标志
var envMarkers = map[string]struct{}{
	"site-packages": {}, "dist-packages": {}, ".venv": {}, "conda-meta": {},
	".tox": {}, "pyvenv.cfg": {},
}

var binaryExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".so": {}, ".dylib": {}, ".a": {}, ".lib": {},
	".o": {}, ".obj": {}, ".pyc": {}, ".pyo": {}, ".class": {}, ".jar": {},
	".war": {}, ".whl": {}, ".egg": {}, ".bin": {}, ".wasm": {}, ".node": {},
}

// Options 解压选项
type Options struct {
	MaxPathLength int
	MaxEntryBytes int64 // 0 表示不限制
}

func (o Options) maxPathLength() int {
	if o.MaxPathLength <= 0 {
		return DefaultMaxPathLength
	}
	return o.MaxPathLength
}

// Skipped 被跳过的条目
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result 解压结果，Files 为相对 destDir 的 / 分隔路径
type Result struct {
	Files   []string
	Skipped []Skipped
}

func (r *Result) skip(name, reason string) {
	r.Skipped = append(r.Skipped, Skipped{Name: name, Reason: reason})
}

// ExtractZipFile 打开磁盘上的 ZIP 并解压
func ExtractZipFile(zipPath, destDir string, opts Options) (*Result, error) {
	f, err := os.Open(zipPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return ExtractZip(f, info.Size(), destDir, opts)
}

// ExtractZip 将 ZIP 中可用的条目解压到 destDir，逐条过滤，单条失败不影响其他条目
func ExtractZip(r io.ReaderAt, size int64, destDir string, opts Options) (*Result, error) {
	zr, err := zip.NewReader(r, size)
	// 不安全路径由 classifyEntry 逐条过滤
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	cleanDest := filepath.Clean(destDir)
	if err := os.MkdirAll(cleanDest, 0755); err != nil {
		return nil, err
	}

	result := &Result{}
	for _, f := range zr.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")

		if reason := classifyEntry(f, name, cleanDest, opts); reason != "" {
			result.skip(name, reason)
			continue
		}

		rel := path.Clean(name)
		destPath := filepath.Join(cleanDest, filepath.FromSlash(rel))
		if err := writeEntry(f, destPath, opts.MaxEntryBytes); err != nil {
			os.Remove(destPath)
			if errors.Is(err, errEntryTooLarge) {
				result.skip(name, ReasonTooLarge)
			} else {
				result.skip(name, ReasonUnreadable)
			}
			continue
		}
		result.Files = append(result.Files, rel)
	}
	return result, nil
}

// classifyEntry 返回跳过原因，空串表示接收
func classifyEntry(f *zip.File, name, destDir string, opts Options) string {
	if len(filepath.Join(destDir, filepath.FromSlash(name))) > opts.maxPathLength() {
		return ReasonPathTooLong
	}

	segments := strings.Split(strings.Trim(name, "/"), "/")
	for _, seg := range segments {
		if _, ok := junkNames[seg]; ok {
			return ReasonJunk
		}
	}

	if strings.HasSuffix(name, "/") || f.FileInfo().IsDir() {
		return ReasonDirectory
	}

	if isEnvironmentPath(segments) {
		return ReasonEnvironment
	}

	if _, ok := binaryExtensions[strings.ToLower(path.Ext(name))]; ok {
		return ReasonBinary
	}

	if !isSafePath(name, destDir) {
		return ReasonUnsafePath
	}

	if f.Mode()&os.ModeSymlink != 0 {
		return ReasonSymlink
	}

	if opts.MaxEntryBytes > 0 && f.UncompressedSize64 > uint64(opts.MaxEntryBytes) {
		return ReasonTooLarge
	}
	return ""
}

func isEnvironmentPath(segments []string) bool {
	for i, seg := range segments {
		if _, ok := envMarkers[seg]; ok {
			return true
		}
		// lib/python3.11/...
		if strings.EqualFold(seg, "lib") && i+1 < len(segments)-1 &&
			strings.HasPrefix(strings.ToLower(segments[i+1]), "python") {
			return true
		}
	}
	return false
}

// isSafePath 防止 zip slip
func isSafePath(name, destDir string) bool {
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return false
	}
	rel := path.Clean(name)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return false
	}
	destPath := filepath.Join(destDir, filepath.FromSlash(rel))
	return strings.HasPrefix(destPath, destDir+string(os.PathSeparator))
}

var errEntryTooLarge = errors.New("entry exceeds size limit")

func writeEntry(f *zip.File, destPath string, maxBytes int64) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer dst.Close()

	var reader io.Reader = src
	if maxBytes > 0 {
		reader = io.LimitReader(src, maxBytes+1)
	}
	n, err := io.Copy(dst, reader)
	if err != nil {
		return err
	}
	if maxBytes > 0 && n > maxBytes {
		return errEntryTooLarge
	}
	return nil
}
