package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/qs3c/bug_triage_server/internal/model"
	"github.com/qs3c/bug_triage_server/internal/pkg/chunk"
)

const groupSystem = `You are a senior software architect. You receive short previews of the files in one upload.
Partition the files into groups of files that should be reviewed together because they depend on each other.
Every file path must appear in exactly one group. Unrelated files form their own single-file group.
Return ONLY a JSON array of arrays of file paths, for example: [["a.py", "b.py"], ["c.js"]]`

const analyzeSystem = `You are a professional software engineer and expert code reviewer.
For each BUG report: line number, priority (High / Medium / Low), confidence (High / Medium / Low), description.
For each OPTIMIZATION report: line number (0 or -1 if not applicable), description.
Use the line numbers shown in the listing. Do not report cosmetic or style-only issues.
Return ONLY a JSON object keyed by file path:
{"<file path>": {"bugs": [{"line": 1, "priority": "High", "confidence": "High", "description": "..."}], "optimizations": [{"line": 1, "description": "..."}]}}
Files without findings map to {"bugs": [], "optimizations": []}.`

const refineSystem = `You are a professional code reviewer. You receive the list of BUGS detected in one file, in JSON.
REMOVE false positives. ADD missing critical bugs if any. FIX incorrect line numbers.
DO NOT erase valid bugs unless clearly wrong. DO NOT include cosmetic or style-only issues.
Return ONLY a JSON object: {"bugs": [{"line": 1, "priority": "High", "confidence": "High", "description": "..."}]}
If no bugs remain return {"bugs": []}.`

func groupPrompt(previews []FilePreview) string {
	var b strings.Builder
	b.WriteString("Files in this upload:\n\n")
	for _, p := range previews {
		fmt.Fprintf(&b, "--- %s ---\n%s\n\n", p.Path, p.Preview)
	}
	return b.String()
}

func analyzePrompt(chunks []chunk.Chunk) string {
	var b strings.Builder
	b.WriteString("Here are the files. Large files are split into labeled chunks.\n\n")
	for _, ch := range chunks {
		fmt.Fprintf(&b, "--- %s ---\n", ch.Header())
		for i, line := range ch.Lines {
			fmt.Fprintf(&b, "%d: %s\n", ch.Start+i+1, line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func refinePrompt(fileID string, bugs []model.Bug) string {
	if bugs == nil {
		bugs = []model.Bug{}
	}
	data, _ := json.MarshalIndent(map[string][]model.Bug{"bugs": bugs}, "", "  ")
	return fmt.Sprintf("You are reviewing file: %s\n\nDetected bug list:\n\n%s\n\nReturn the corrected list as JSON only.", fileID, data)
}
