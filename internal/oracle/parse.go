package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"

	"github.com/qs3c/bug_triage_server/internal/model"
)

const maxRawLen = 2000

// flexInt 接受数字或数字字符串，无法识别时为 0
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexInt(int(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexInt(leadingInt(s))
		return nil
	}
	*f = 0
	return nil
}

// leadingInt 取字符串中第一个整数，"12-14" -> 12，"N/A" -> 0
func leadingInt(s string) int {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0
	}
	if start > 0 && s[start-1] == '-' {
		return -n
	}
	return n
}

// flexText 接受字符串或数字
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexText(strings.TrimSpace(s))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexText(formatPercent(n))
		return nil
	}
	*f = ""
	return nil
}

func formatPercent(n float64) string {
	if n > 0 && n <= 1 {
		n *= 100
	}
	return fmt.Sprintf("%d%%", int(math.Round(n)))
}

type rawBug struct {
	Line        flexInt  `json:"line"`
	Priority    flexText `json:"priority"`
	Confidence  flexText `json:"confidence"`
	Description flexText `json:"description"`
}

type rawOptimization struct {
	Line        flexInt  `json:"line"`
	Description flexText `json:"description"`
}

type rawFindings struct {
	Bugs          []rawBug          `json:"bugs"`
	Optimizations []rawOptimization `json:"optimizations"`
}

func (r rawFindings) toFindings() model.Findings {
	return model.Findings{
		Bugs:          toBugs(r.Bugs),
		Optimizations: toOptimizations(r.Optimizations),
	}
}

func toBugs(raw []rawBug) []model.Bug {
	bugs := make([]model.Bug, 0, len(raw))
	for _, rb := range raw {
		desc := string(rb.Description)
		if desc == "" {
			continue
		}
		line := int(rb.Line)
		if line < 0 {
			line = 0
		}
		bugs = append(bugs, model.Bug{
			Line:        line,
			Priority:    normalizeLevel(string(rb.Priority)),
			Confidence:  normalizeConfidence(string(rb.Confidence)),
			Description: desc,
		})
	}
	return bugs
}

func toOptimizations(raw []rawOptimization) []model.Optimization {
	opts := make([]model.Optimization, 0, len(raw))
	for _, ro := range raw {
		desc := string(ro.Description)
		if desc == "" {
			continue
		}
		line := int(ro.Line)
		if line < -1 {
			line = -1
		}
		opts = append(opts, model.Optimization{Line: line, Description: desc})
	}
	return opts
}

// normalizeLevel 统一为 High / Medium / Low，空值为 Medium
func normalizeLevel(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "high", "critical", "severe":
		return "High"
	case "medium", "moderate", "med":
		return "Medium"
	case "low", "minor", "trivial":
		return "Low"
	case "":
		return "Medium"
	}
	r := []rune(strings.ToLower(s))
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// normalizeConfidence 百分比原样保留，纯数字补 %，其余按等级处理
func normalizeConfidence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		return s
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return formatPercent(n)
	}
	return normalizeLevel(s)
}

func truncate(raw string) string {
	if len(raw) <= maxRawLen {
		return raw
	}
	return raw[:maxRawLen]
}

func parseFailure(stage, reason, raw string) *ParseFailure {
	return &ParseFailure{Stage: stage, Kind: KindParse, Reason: reason, Raw: truncate(raw)}
}

// parseGroups 解析 [[path...], ...] 或 {"groups": [[path...], ...]}
func parseGroups(raw string) GroupResult {
	var groups [][]string
	if err := json.Unmarshal([]byte(raw), &groups); err == nil {
		return GroupResult{Groups: groups}
	}

	var wrapped struct {
		Groups [][]string `json:"groups"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && wrapped.Groups != nil {
		return GroupResult{Groups: wrapped.Groups}
	}
	return GroupResult{Failure: parseFailure(StageGroup, "expected a JSON list of lists of paths", raw)}
}

// parseAnalysis 解析按文件索引的结果。单文件分组也接受扁平的 {bugs, optimizations}
func parseAnalysis(raw string, fileIDs []string) AnalysisResult {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &top); err != nil {
		return AnalysisResult{Failure: parseFailure(StageAnalyze, "expected a JSON object keyed by file", raw)}
	}

	_, hasBugs := top["bugs"]
	_, hasOpts := top["optimizations"]
	if (hasBugs || hasOpts) && len(fileIDs) == 1 {
		var flat rawFindings
		if err := json.Unmarshal([]byte(raw), &flat); err != nil {
			return AnalysisResult{Failure: parseFailure(StageAnalyze, err.Error(), raw)}
		}
		return AnalysisResult{Files: map[string]model.Findings{fileIDs[0]: flat.toFindings()}}
	}

	files := make(map[string]model.Findings, len(fileIDs))
	for key, value := range top {
		fileID, ok := matchFileID(key, fileIDs)
		if !ok {
			continue
		}
		var rf rawFindings
		if err := json.Unmarshal(value, &rf); err != nil {
			continue
		}
		files[fileID] = rf.toFindings()
	}

	if len(files) == 0 && len(top) > 0 {
		return AnalysisResult{Files: files, Failure: parseFailure(StageAnalyze, "no findings for the requested files", raw)}
	}
	return AnalysisResult{Files: files}
}

// matchFileID 精确匹配，其次规范化路径匹配，最后唯一的文件名匹配
func matchFileID(key string, fileIDs []string) (string, bool) {
	for _, id := range fileIDs {
		if id == key {
			return id, true
		}
	}

	norm := strings.TrimPrefix(path.Clean(strings.ReplaceAll(key, "\\", "/")), "./")
	for _, id := range fileIDs {
		if id == norm {
			return id, true
		}
	}

	base := path.Base(norm)
	match := ""
	for _, id := range fileIDs {
		if path.Base(id) == base {
			if match != "" {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}

// parseRefine 解析 {"bugs": [...]}，也接受直接返回的数组
func parseRefine(raw string) RefineResult {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var bugs []rawBug
		if err := json.Unmarshal(trimmed, &bugs); err != nil {
			return RefineResult{Failure: parseFailure(StageRefine, err.Error(), raw)}
		}
		return RefineResult{Bugs: toBugs(bugs)}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return RefineResult{Failure: parseFailure(StageRefine, "expected a JSON object with a bugs list", raw)}
	}
	bugsRaw, ok := top["bugs"]
	if !ok {
		return RefineResult{Failure: parseFailure(StageRefine, "missing bugs field", raw)}
	}

	var bugs []rawBug
	if err := json.Unmarshal(bugsRaw, &bugs); err != nil {
		return RefineResult{Failure: parseFailure(StageRefine, err.Error(), raw)}
	}
	result := RefineResult{Bugs: toBugs(bugs)}

	if optsRaw, ok := top["optimizations"]; ok {
		var opts []rawOptimization
		if err := json.Unmarshal(optsRaw, &opts); err == nil {
			result.Optimizations = toOptimizations(opts)
		}
	}
	return result
}
