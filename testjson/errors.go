package testjson

import "fmt"

// InvalidActionError is returned when an action tag is not one of the known
// test2json actions.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action: %q", e.Action)
}

// MalformedEventError is returned when a line of test2json output could not
// be decoded into a TestEvent.
type MalformedEventError struct {
	// Line is the raw line that failed to decode.
	Line string
	Err  error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed test event: %v: %s", e.Err, e.Line)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}

// Cause implements the github.com/pkg/errors causer interface.
func (e *MalformedEventError) Cause() error {
	return e.Err
}

// InconsistentGroupError is returned when the events passed to NewTestResult
// do not all belong to the same test.
type InconsistentGroupError struct {
	Package  string
	Test     string
	OtherPkg string
	Other    string
}

func (e *InconsistentGroupError) Error() string {
	return fmt.Sprintf("events for multiple tests in one group: %s.%s and %s.%s",
		e.Package, e.Test, e.OtherPkg, e.Other)
}

// NoTerminalActionError is returned when the events for a test never reach
// a pass, fail, skip, or bench action. This usually means the test2json
// output was truncated.
type NoTerminalActionError struct {
	Package string
	Test    string
}

func (e *NoTerminalActionError) Error() string {
	return fmt.Sprintf("no final action for test %s in package %s", e.Test, e.Package)
}
