package tracesink

import "strings"

// BytesFromRange converts a V8 coverage-style line/column start/end range
// into a byte count within text. Exported for a Parser implementation's
// script-coverage finalize hook (WriteScriptTimings) to use — the parser's
// own internals are out of scope here, but this one pure conversion is
// cheap to own and test on this side of the interface. Grounded on the
// original devtools.py's bytes_from_range: a single-line range is
// end-start+1 columns; a multi-line range sums the full lines strictly
// between start and end plus each partial edge line. Out-of-range line
// numbers return 0 rather than erroring, as do, for a multi-line range, a
// negative column or a start column past the end of its line, matching the
// original's best-effort "never raise" behavior for this helper. A
// single-line range's columns are not checked against the line.
func BytesFromRange(text string, startLine, startColumn, endLine, endColumn int) int {
	lines := strings.Split(text, "\n")
	lineCount := len(lines)
	if startLine < 0 || endLine < 0 || startLine >= lineCount || endLine >= lineCount {
		return 0
	}

	if startLine == endLine {
		return endColumn - startColumn + 1
	}

	if startColumn < 0 || startColumn > len(lines[startLine]) || endColumn < 0 {
		return 0
	}

	count := 0
	for row := startLine + 1; row < endLine; row++ {
		count += len(lines[row])
	}
	count += len(lines[startLine][startColumn:])
	count += endColumn
	return count
}
