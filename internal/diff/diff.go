// internal/diff/diff.go
package diff

import (
	"bytes"
	"fmt"
	"strings"
)

// Line represents a single line in a diff with its type and content
type Line struct {
	Type    LineType
	Content string
	OldNum  int // 0 for additions
	NewNum  int // 0 for deletions
}

// LineType indicates whether a line was added, removed, or is context
type LineType int

const (
	Context LineType = iota
	Addition
	Deletion
)

func (t LineType) prefix() string {
	switch t {
	case Addition:
		return "+"
	case Deletion:
		return "-"
	default:
		return " "
	}
}

// Result contains the complete diff information
type Result struct {
	Hunks []Hunk
	Stats struct {
		Additions int
		Deletions int
	}
}

// Empty reports whether both sides were identical.
func (r *Result) Empty() bool {
	return len(r.Hunks) == 0
}

// Hunk represents a continuous section of changes
type Hunk struct {
	OldStart int
	OldLines int
	NewStart int
	NewLines int
	Lines    []Line
}

func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// Engine provides diffing capabilities
type Engine struct {
	contextLines int
}

// NewEngine creates a new diff engine with specified context lines
func NewEngine(contextLines int) *Engine {
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{
		contextLines: contextLines,
	}
}

// Diff generates a line-by-line diff between two contents
func (e *Engine) Diff(oldContent, newContent []byte) *Result {
	oldLines := splitLines(oldContent)
	newLines := splitLines(newContent)

	script := editScript(oldLines, newLines)

	result := &Result{Hunks: e.group(script)}
	for _, line := range script {
		switch line.Type {
		case Addition:
			result.Stats.Additions++
		case Deletion:
			result.Stats.Deletions++
		}
	}
	return result
}

func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	return strings.Split(string(bytes.TrimSuffix(content, []byte{'\n'})), "\n")
}

// editScript walks an LCS table forward, producing every line of both sides
// in order.
func editScript(oldLines, newLines []string) []Line {
	n, m := len(oldLines), len(newLines)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	script := make([]Line, 0, n+m)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldLines[i] == newLines[j]:
			script = append(script, Line{Type: Context, Content: oldLines[i], OldNum: i + 1, NewNum: j + 1})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			script = append(script, Line{Type: Deletion, Content: oldLines[i], OldNum: i + 1})
			i++
		default:
			script = append(script, Line{Type: Addition, Content: newLines[j], NewNum: j + 1})
			j++
		}
	}
	for ; i < n; i++ {
		script = append(script, Line{Type: Deletion, Content: oldLines[i], OldNum: i + 1})
	}
	for ; j < m; j++ {
		script = append(script, Line{Type: Addition, Content: newLines[j], NewNum: j + 1})
	}
	return script
}

// group cuts the edit script into hunks, keeping contextLines of unchanged
// lines around each change and merging changes whose context would overlap.
func (e *Engine) group(script []Line) []Hunk {
	// lines of each side preceding script[k]
	oldBefore := make([]int, len(script)+1)
	newBefore := make([]int, len(script)+1)
	for k, line := range script {
		oldBefore[k+1] = oldBefore[k]
		newBefore[k+1] = newBefore[k]
		if line.Type != Addition {
			oldBefore[k+1]++
		}
		if line.Type != Deletion {
			newBefore[k+1]++
		}
	}

	var hunks []Hunk
	for i := 0; i < len(script); {
		if script[i].Type == Context {
			i++
			continue
		}

		last := i
		for j := i + 1; j < len(script); j++ {
			if script[j].Type != Context {
				last = j
			} else if j-last > 2*e.contextLines {
				break
			}
		}

		start := max(0, i-e.contextLines)
		stop := min(len(script), last+1+e.contextLines)

		h := Hunk{
			OldLines: oldBefore[stop] - oldBefore[start],
			NewLines: newBefore[stop] - newBefore[start],
			Lines:    append([]Line(nil), script[start:stop]...),
		}
		h.OldStart = oldBefore[start]
		if h.OldLines > 0 {
			h.OldStart++
		}
		h.NewStart = newBefore[start]
		if h.NewLines > 0 {
			h.NewStart++
		}
		hunks = append(hunks, h)
		i = stop
	}
	return hunks
}

// Format returns the diff in unified format under the given file names.
func (r *Result) Format(oldName, newName string) string {
	if r.Empty() {
		return ""
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", oldName, newName)
	for _, hunk := range r.Hunks {
		buf.WriteString(hunk.Header())
		buf.WriteByte('\n')
		for _, line := range hunk.Lines {
			buf.WriteString(line.Type.prefix())
			buf.WriteString(line.Content)
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}
