package oracle

import (
	"fmt"

	"github.com/qs3c/bug_triage_server/internal/model"
)

// 调用阶段
const (
	StageGroup   = "group"
	StageAnalyze = "analyze"
	StageRefine  = "refine"
)

// 失败类型
const (
	KindOracle = "oracle" // 调用本身失败（网络、超时、空响应）
	KindParse  = "parse"  // 响应无法解析为约定结构
)

// ParseFailure 一次调用未能得到可用结果。它是值而不是 error，调用方按降级策略处理
type ParseFailure struct {
	Stage  string
	Kind   string
	Reason string
	Raw    string
}

func (f *ParseFailure) String() string {
	return fmt.Sprintf("%s %s failure: %s", f.Stage, f.Kind, f.Reason)
}

// FilePreview 分组调用的输入
type FilePreview struct {
	Path    string
	Preview string
}

// GroupResult 分组结果，Failure 非空时 Groups 无意义
type GroupResult struct {
	Groups  [][]string
	Failure *ParseFailure
}

// AnalysisResult 一个分组的首轮分析结果，按文件 ID 索引
type AnalysisResult struct {
	Files   map[string]model.Findings
	Failure *ParseFailure
}

// For 返回文件的结果，缺失时为空结果
func (r AnalysisResult) For(fileID string) model.Findings {
	if f, ok := r.Files[fileID]; ok {
		return f.Normalize()
	}
	return model.Findings{}.Normalize()
}

// RefineResult 复核结果。Optimizations 为 nil 表示响应未包含优化建议
type RefineResult struct {
	Bugs          []model.Bug
	Optimizations []model.Optimization
	Failure       *ParseFailure
}
