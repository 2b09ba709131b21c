package testjson

import (
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

var (
	// failureLineRE matches the file:line prefix added by t.Error, t.Fatal,
	// and t.Log. Sub-tests are indented further, so any amount of leading
	// whitespace is accepted.
	failureLineRE = regexp.MustCompile(`^[ \t]+(.+?\.go):(\d+): (.*)`)
	// fileLinePrefixRE matches the same prefix as failureLineRE, for removal.
	fileLinePrefixRE = regexp.MustCompile(`^\s+.*?\.go:\d+: `)
	reportLineRE     = regexp.MustCompile(`^[ \t]*--- (?:PASS|FAIL|SKIP|BENCH):`)
	updateLineRE     = regexp.MustCompile(`^=== (?:RUN|PAUSE|CONT)\s+`)
)

// FailureLine is the location and message parsed from a line of test output
// written by t.Error or similar.
type FailureLine struct {
	Filename string
	Line     int
	Message  string
}

// ParseFailureLine parses a line of test output that starts with an indented
// file:line: prefix. The trailing newline is optional. Returns false if the
// line does not match. A line number too large for an int is clamped to the
// largest int.
func ParseFailureLine(line string) (FailureLine, bool) {
	m := failureLineRE.FindStringSubmatch(line)
	if m == nil {
		return FailureLine{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return FailureLine{}, false
	}
	return FailureLine{Filename: m[1], Line: n, Message: m[3]}, true
}

// IsReportLine returns true if line is the --- PASS, FAIL, SKIP or BENCH line
// printed at the end of a test.
func IsReportLine(line string) bool {
	return reportLineRE.MatchString(line)
}

// IsUpdateLine returns true if line is the === RUN, PAUSE or CONT line printed
// when the state of a test changes.
func IsUpdateLine(line string) bool {
	return updateLineRE.MatchString(line)
}

// isSpanBoundary returns true if line ends the output of the current failure.
func isSpanBoundary(line string) bool {
	return failureLineRE.MatchString(line) || IsReportLine(line) || IsUpdateLine(line)
}
