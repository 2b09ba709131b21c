package testjson

import (
	"strings"
	"time"
)

// LocatedFailure is a single failure reported by a test, with the location
// of the t.Error (or similar) call which reported it.
type LocatedFailure struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	// Message is the text that followed file:line: on the first line.
	Message string `json:"message"`
	// RawLines is the output of the failure as it was printed by the test.
	RawLines []string `json:"output"`
	// CombinedText is RawLines with the indentation and the file:line:
	// prefix removed, joined by newlines.
	CombinedText string `json:"combined_output"`
}

// ShortMessage returns the first non-empty line of the failure message.
func (f LocatedFailure) ShortMessage() string {
	for _, line := range strings.Split(f.CombinedText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// TestResult is the final status of a single test, and any failures it
// reported.
type TestResult struct {
	// Name of the test, sub-tests are separated by a slash.
	Name    string `json:"name"`
	Package string `json:"package"`
	Status  Action `json:"status"`
	// Elapsed is the number of seconds reported by the terminal event.
	Elapsed float64 `json:"elapsed"`
	// Failures is empty for tests which passed or were skipped. It may also
	// be empty for a failed test, when the failure was a panic or the test
	// output did not include a file:line.
	Failures []LocatedFailure `json:"failures"`
}

// IsSubtest returns true if the test is a sub-test of another test.
func (t TestResult) IsSubtest() bool {
	return strings.Contains(t.Name, "/")
}

// RootName returns the name of the top level test. For a test that is not a
// sub-test this is the same as Name.
func (t TestResult) RootName() string {
	root, _ := splitTestName(t.Name)
	return root
}

// Failed returns true if the test failed.
func (t TestResult) Failed() bool {
	return t.Status == ActionFail
}

// splitTestName into root test name and any subtest names.
func splitTestName(name string) (root, sub string) {
	parts := strings.SplitN(name, "/", 2)
	if len(parts) < 2 {
		return name, ""
	}
	return parts[0], parts[1]
}

// NewTestResult builds a TestResult from all the events of a single test, in
// the order they were received. The events are not modified.
func NewTestResult(events []TestEvent) (TestResult, error) {
	if len(events) == 0 {
		return TestResult{}, &NoTerminalActionError{}
	}
	first := events[0]
	for _, event := range events[1:] {
		if event.Test != first.Test || event.Package != first.Package {
			return TestResult{}, &InconsistentGroupError{
				Package:  first.Package,
				Test:     first.Test,
				OtherPkg: event.Package,
				Other:    event.Test,
			}
		}
	}

	terminal, ok := terminalEvent(events)
	if !ok {
		return TestResult{}, &NoTerminalActionError{Package: first.Package, Test: first.Test}
	}

	return TestResult{
		Name:     first.Test,
		Package:  first.Package,
		Status:   terminal.Action,
		Elapsed:  terminal.Elapsed,
		Failures: findFailures(trimFraming(events)),
	}, nil
}

func terminalEvent(events []TestEvent) (TestEvent, bool) {
	for _, event := range events {
		if event.Action.IsTerminal() {
			return event, true
		}
	}
	return TestEvent{}, false
}

// ElapsedDuration returns Elapsed as a time.Duration.
func (t TestResult) ElapsedDuration() time.Duration {
	return time.Duration(t.Elapsed*1000) * time.Millisecond
}

// trimFraming removes the === RUN line from the start of the events, and
// then the event after it.
//
// TODO: the second event is removed even when it is not an update line,
// which drops the run event in the usual run, output(=== RUN) ordering
// but may drop real output when a test starts with something else. Confirm
// against go1.20+ output, which also emits === NAME lines.
func trimFraming(events []TestEvent) []TestEvent {
	if len(events) > 0 && IsUpdateLine(events[0].Output) {
		events = events[1:]
	}
	if len(events) > 0 {
		events = events[1:]
	}
	return events
}

// findFailures walks events in order. Each output line which starts with a
// file:line: prefix begins a new failure. The failure includes all the
// following output up to the next file:line:, --- report, or === update line.
func findFailures(events []TestEvent) []LocatedFailure {
	failures := []LocatedFailure{}
	for len(events) > 0 {
		event := events[0]
		events = events[1:]
		if event.Action != ActionOutput || event.Output == "" {
			continue
		}

		loc, ok := ParseFailureLine(event.Output)
		if !ok {
			continue
		}

		failure := LocatedFailure{
			Filename: loc.Filename,
			Line:     loc.Line,
			Message:  loc.Message,
			RawLines: []string{event.Output},
		}
		events = collectFailureOutput(&failure, events)
		failure.CombinedText = CombineOutput(failure.RawLines)
		failures = append(failures, failure)
	}
	return failures
}

// collectFailureOutput appends output to failure until the next boundary line.
// Returns the events starting at the boundary, or nil if every event was
// consumed.
func collectFailureOutput(failure *LocatedFailure, events []TestEvent) []TestEvent {
	for i, event := range events {
		if event.Action != ActionOutput {
			continue
		}
		if isSpanBoundary(event.Output) {
			return events[i:]
		}
		failure.RawLines = append(failure.RawLines, event.Output)
	}
	return nil
}

// nestedIndent is the extra indentation go test adds to the continuation
// lines of a message, relative to its file:line: line.
const nestedIndent = "    "

// CombineOutput removes the indentation from the lines of a failure and
// joins them into a single message. The indentation removed is the leading
// spaces of the first line plus one more level. Lines which are indented
// less than that are left unmodified. The file:line: prefix is removed
// from the first line.
func CombineOutput(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	prefix := ""
	if i := strings.IndexFunc(lines[0], func(r rune) bool { return r != ' ' }); i >= 0 {
		prefix = lines[0][:i] + nestedIndent
	}

	combined := make([]string, len(lines))
	for i, line := range lines {
		line = strings.TrimPrefix(line, prefix)
		combined[i] = strings.TrimRight(line, "\n")
	}
	combined[0] = fileLinePrefixRE.ReplaceAllString(combined[0], "")
	return strings.Join(combined, "\n")
}
