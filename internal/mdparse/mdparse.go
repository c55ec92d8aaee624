// Package mdparse reads pipe tables and labeled values back out of Markdown
// reports.
package mdparse

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Table is one pipe table together with the nearest heading above it.
type Table struct {
	Heading   string
	Columns   []string
	Rows      [][]string
	LineStart int
}

// Column returns the index of the column named name, or -1.
func (t Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Lookup returns the cell in column col of the first row whose first cell is
// key.
func (t Table) Lookup(key, col string) (string, bool) {
	ci := t.Column(col)
	if ci < 0 {
		return "", false
	}
	for _, row := range t.Rows {
		if len(row) > ci && len(row) > 0 && row[0] == key {
			return row[ci], true
		}
	}
	return "", false
}

// FindTable returns the first table under heading.
func FindTable(tables []Table, heading string) (Table, bool) {
	for _, t := range tables {
		if t.Heading == heading {
			return t, true
		}
	}
	return Table{}, false
}

// ParseTables reads from r and returns every pipe table outside fenced code
// blocks, in document order.
func ParseTables(r io.Reader) ([]Table, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}

	var (
		tables    []Table
		heading   string
		openFence string
	)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if openFence != "" {
			if closesFence(line, openFence) {
				openFence = ""
			}
			continue
		}
		if run := fenceRun(line); run != "" {
			openFence = run
			continue
		}
		if IsHeading(line) {
			heading = HeadingText(line)
			continue
		}
		// A table needs a header row followed by a delimiter row.
		if !isTableRow(line) || i+1 >= len(lines) || !isDelimiterRow(lines[i+1]) {
			continue
		}
		t := Table{Heading: heading, Columns: SplitRow(line), LineStart: i + 1}
		i += 2
		for i < len(lines) && isTableRow(lines[i]) {
			t.Rows = append(t.Rows, SplitRow(lines[i]))
			i++
		}
		i-- // loop increment
		tables = append(tables, t)
	}
	return tables, nil
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	// Allow up to 1MB for long lines.
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("mdparse: scan: %w", err)
	}
	return lines, nil
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

// isDelimiterRow matches the |---|:--:| line under a table header.
func isDelimiterRow(line string) bool {
	if !isTableRow(line) {
		return false
	}
	cells := SplitRow(line)
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		c = strings.Trim(c, ":")
		if len(c) < 1 || strings.Trim(c, "-") != "" {
			return false
		}
	}
	return true
}

// SplitRow splits a pipe-table row into trimmed cells. Escaped pipes (\|)
// stay inside their cell and are unescaped.
func SplitRow(line string) []string {
	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "|")
	if strings.HasSuffix(s, "|") && !strings.HasSuffix(s, `\|`) {
		s = s[:len(s)-1]
	}
	var (
		cells []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		if s[i] == '|' {
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteByte(s[i])
	}
	return append(cells, strings.TrimSpace(cur.String()))
}

var boldLabel = regexp.MustCompile(`\*\*([^*]+?):?\*\*:?`)

// FieldValue returns the value of the first "Label: value" line in text.
// Bold markup around the label ("**Label:** value") is accepted.
func FieldValue(text, label string) (string, bool) {
	for _, line := range strings.Split(text, "\n") {
		plain := boldLabel.ReplaceAllString(strings.TrimSpace(line), "$1:")
		plain = strings.TrimLeft(plain, "-* ")
		rest, ok := strings.CutPrefix(plain, label+":")
		if !ok {
			continue
		}
		return strings.TrimSpace(rest), true
	}
	return "", false
}

// indent returns the count of leading spaces on line. Four or more make the
// line indented code, which opens neither a fence nor a heading.
func indent(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

// fenceRun returns the run of three or more backticks or tildes that opens a
// fenced block on line, or "" when line is not a fence.
func fenceRun(line string) string {
	n := indent(line)
	if n >= 4 {
		return ""
	}
	rest := line[n:]
	if rest == "" || (rest[0] != '`' && rest[0] != '~') {
		return ""
	}
	run := len(rest) - len(strings.TrimLeft(rest, rest[:1]))
	if run < 3 {
		return ""
	}
	return rest[:run]
}

// closesFence reports whether line ends the block opened by fence: the same
// marker, at least as long, with only spaces around it.
func closesFence(line, fence string) bool {
	if fence == "" {
		return false
	}
	run := fenceRun(line)
	return run != "" && run[0] == fence[0] && len(run) >= len(fence) &&
		strings.Trim(line, " ") == run
}

// IsHeading reports whether line is an ATX heading: one to six hashes then a
// space.
func IsHeading(line string) bool {
	if indent(line) >= 4 {
		return false
	}
	t := strings.TrimSpace(line)
	level := len(t) - len(strings.TrimLeft(t, "#"))
	return level >= 1 && level <= 6 && len(t) > level && t[level] == ' '
}

// HeadingText returns the text of an ATX heading without its hashes.
func HeadingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}
