package oracle

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/bug_triage_server/internal/model"
)

func TestParseGroups(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    [][]string
		failure bool
	}{
		{"list of lists", `[["a.py","b.py"],["c.js"]]`, [][]string{{"a.py", "b.py"}, {"c.js"}}, false},
		{"wrapped", `{"groups": [["a.py"]]}`, [][]string{{"a.py"}}, false},
		{"empty list", `[]`, [][]string{}, false},
		{"flat list", `["a.py","b.py"]`, nil, true},
		{"prose", `I think these files belong together`, nil, true},
		{"object without groups", `{"files": []}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseGroups(tt.raw)
			if tt.failure {
				require.NotNil(t, got.Failure)
				assert.Equal(t, StageGroup, got.Failure.Stage)
				assert.Equal(t, KindParse, got.Failure.Kind)
				return
			}
			assert.Nil(t, got.Failure)
			assert.Equal(t, tt.want, got.Groups)
		})
	}
}

func TestParseAnalysis_KeyedByFile(t *testing.T) {
	raw := `{
		"src/a.py": {"bugs": [{"line": 12, "priority": "high", "confidence": 0.9, "description": "off by one"}], "optimizations": []},
		"src/b.py": {"bugs": [], "optimizations": [{"line": "-1", "description": "cache the result"}]},
		"unknown.py": {"bugs": [{"line": 1, "description": "ignored"}]}
	}`

	got := parseAnalysis(raw, []string{"src/a.py", "src/b.py", "src/c.py"})
	require.Nil(t, got.Failure)

	a := got.For("src/a.py")
	require.Len(t, a.Bugs, 1)
	assert.Equal(t, model.Bug{Line: 12, Priority: "High", Confidence: "90%", Description: "off by one"}, a.Bugs[0])
	assert.Empty(t, a.Optimizations)

	b := got.For("src/b.py")
	assert.Empty(t, b.Bugs)
	require.Len(t, b.Optimizations, 1)
	assert.Equal(t, -1, b.Optimizations[0].Line)

	// 缺失的文件得到空结果
	c := got.For("src/c.py")
	assert.NotNil(t, c.Bugs)
	assert.Empty(t, c.Bugs)

	_, ok := got.Files["unknown.py"]
	assert.False(t, ok)
}

func TestParseAnalysis_FlatSingleFile(t *testing.T) {
	raw := `{"bugs": [{"line": "line 7", "priority": "Low", "confidence": "Medium", "description": "unused variable shadows import"}]}`

	got := parseAnalysis(raw, []string{"main.go"})
	require.Nil(t, got.Failure)
	bugs := got.For("main.go").Bugs
	require.Len(t, bugs, 1)
	assert.Equal(t, 7, bugs[0].Line)
	assert.Equal(t, "Low", bugs[0].Priority)
}

func TestParseAnalysis_BasenameMatch(t *testing.T) {
	raw := `{"a.py": {"bugs": [{"line": 3, "description": "x"}]}, "./pkg/b.py": {"bugs": [{"line": 4, "description": "y"}]}}`

	got := parseAnalysis(raw, []string{"proj/src/a.py", "pkg/b.py"})
	require.Nil(t, got.Failure)
	assert.Len(t, got.For("proj/src/a.py").Bugs, 1)
	assert.Len(t, got.For("pkg/b.py").Bugs, 1)
}

func TestParseAnalysis_AmbiguousBasename(t *testing.T) {
	raw := `{"util.py": {"bugs": [{"line": 3, "description": "x"}]}}`

	got := parseAnalysis(raw, []string{"a/util.py", "b/util.py"})
	require.NotNil(t, got.Failure)
	assert.Empty(t, got.For("a/util.py").Bugs)
	assert.Empty(t, got.For("b/util.py").Bugs)
}

func TestParseAnalysis_Failures(t *testing.T) {
	got := parseAnalysis(`not json at all`, []string{"a.py"})
	require.NotNil(t, got.Failure)
	assert.Equal(t, StageAnalyze, got.Failure.Stage)
	assert.Equal(t, KindParse, got.Failure.Kind)
	assert.Empty(t, got.For("a.py").Bugs)

	// 空对象不是失败
	got = parseAnalysis(`{}`, []string{"a.py"})
	assert.Nil(t, got.Failure)
}

func TestParseAnalysis_RawTruncated(t *testing.T) {
	raw := strings.Repeat("x", maxRawLen*2)
	got := parseAnalysis(raw, []string{"a.py"})
	require.NotNil(t, got.Failure)
	assert.Len(t, got.Failure.Raw, maxRawLen)
}

func TestParseRefine(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		got := parseRefine(`{"bugs": [{"line": 5, "priority": "Medium", "confidence": "High", "description": "nil deref"}]}`)
		require.Nil(t, got.Failure)
		require.Len(t, got.Bugs, 1)
		assert.Equal(t, 5, got.Bugs[0].Line)
		assert.Nil(t, got.Optimizations)
	})

	t.Run("with optimizations", func(t *testing.T) {
		got := parseRefine(`{"bugs": [], "optimizations": [{"line": 0, "description": "use a map"}]}`)
		require.Nil(t, got.Failure)
		assert.Empty(t, got.Bugs)
		require.Len(t, got.Optimizations, 1)
	})

	t.Run("bare array", func(t *testing.T) {
		got := parseRefine(`[{"line": 2, "description": "race"}]`)
		require.Nil(t, got.Failure)
		require.Len(t, got.Bugs, 1)
		assert.Equal(t, "Medium", got.Bugs[0].Priority)
		assert.Equal(t, "Medium", got.Bugs[0].Confidence)
	})

	t.Run("missing bugs", func(t *testing.T) {
		got := parseRefine(`{"result": "none"}`)
		require.NotNil(t, got.Failure)
		assert.Equal(t, StageRefine, got.Failure.Stage)
	})

	t.Run("garbage", func(t *testing.T) {
		got := parseRefine(`[broken`)
		require.NotNil(t, got.Failure)
	})
}

func TestLeadingInt(t *testing.T) {
	tests := map[string]int{
		"12":      12,
		"line 40": 40,
		"12-14":   12,
		"-1":      -1,
		"N/A":     0,
		"":        0,
	}
	for in, want := range tests {
		assert.Equal(t, want, leadingInt(in), in)
	}
}

func TestNormalizeLevelAndConfidence(t *testing.T) {
	assert.Equal(t, "High", normalizeLevel("CRITICAL"))
	assert.Equal(t, "Medium", normalizeLevel(" moderate "))
	assert.Equal(t, "Low", normalizeLevel("minor"))
	assert.Equal(t, "Medium", normalizeLevel(""))
	assert.Equal(t, "Urgent", normalizeLevel("URGENT"))

	assert.Equal(t, "85%", normalizeConfidence("85%"))
	assert.Equal(t, "85%", normalizeConfidence("85"))
	assert.Equal(t, "70%", normalizeConfidence("0.7"))
	assert.Equal(t, "High", normalizeConfidence("high"))
}

func TestToBugs_ClampsNegativeLineAndDropsEmpty(t *testing.T) {
	bugs := toBugs([]rawBug{
		{Line: -3, Description: "negative"},
		{Line: 4, Description: ""},
	})
	require.Len(t, bugs, 1)
	assert.Equal(t, 0, bugs[0].Line)
}
