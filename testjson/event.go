package testjson

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Action of TestEvent
type Action string

const (
	ActionRun    Action = "run"
	ActionPause  Action = "pause"
	ActionCont   Action = "cont"
	ActionPass   Action = "pass"
	ActionBench  Action = "bench"
	ActionFail   Action = "fail"
	ActionOutput Action = "output"
	ActionSkip   Action = "skip"
)

var knownActions = map[string]Action{
	"run":    ActionRun,
	"pause":  ActionPause,
	"cont":   ActionCont,
	"pass":   ActionPass,
	"bench":  ActionBench,
	"fail":   ActionFail,
	"output": ActionOutput,
	"skip":   ActionSkip,
}

// ParseAction returns the Action for tag. The match is exact, tags which
// differ in case or spelling return an InvalidActionError.
func ParseAction(tag string) (Action, error) {
	if a, ok := knownActions[tag]; ok {
		return a, nil
	}
	return "", &InvalidActionError{Action: tag}
}

// IsTerminal returns true if the action is the final action for a test.
func (a Action) IsTerminal() bool {
	switch a {
	case ActionPass, ActionBench, ActionFail, ActionSkip:
		return true
	default:
		return false
	}
}

// TestEvent is a structure output by go tool test2json and go test -json.
type TestEvent struct {
	// Time encoded as an RFC3339-format string, empty when the event had no
	// time.
	Time    string
	Action  Action
	Package string
	Test    string
	// Elapsed time in seconds
	Elapsed float64
	// Output of test or benchmark
	Output string
	// raw is the raw JSON bytes of the event
	raw []byte
}

// ElapsedDuration returns Elapsed as a time.Duration.
func (e TestEvent) ElapsedDuration() time.Duration {
	return time.Duration(e.Elapsed*1000) * time.Millisecond
}

// ElapsedFormatted returns Elapsed formatted in the go test format, ex (0.00s).
func (e TestEvent) ElapsedFormatted() string {
	return fmt.Sprintf("(%.2fs)", e.Elapsed)
}

// Bytes returns the serialized JSON bytes that were parsed to create the event.
func (e TestEvent) Bytes() []byte {
	return e.raw
}

// wireEvent is the JSON schema of a test2json event. Action is required,
// every other field decodes to its zero value when absent or null.
type wireEvent struct {
	Action  *string
	Time    *string
	Package *string
	Test    *string
	Elapsed *float64
	Output  *string
}

func (w wireEvent) toEvent() (TestEvent, error) {
	if w.Action == nil {
		return TestEvent{}, errors.New("missing Action")
	}
	action, err := ParseAction(*w.Action)
	if err != nil {
		return TestEvent{}, err
	}
	return TestEvent{
		Action:  action,
		Time:    stringOrEmpty(w.Time),
		Package: stringOrEmpty(w.Package),
		Test:    stringOrEmpty(w.Test),
		Elapsed: floatOrZero(w.Elapsed),
		Output:  stringOrEmpty(w.Output),
	}, nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// ParseEvent decodes a single line of test2json output. Any failure is
// returned as a MalformedEventError which includes the line.
func ParseEvent(line []byte) (TestEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return TestEvent{}, &MalformedEventError{Line: string(line), Err: err}
	}
	event, err := w.toEvent()
	if err != nil {
		return TestEvent{}, &MalformedEventError{Line: string(line), Err: err}
	}
	event.raw = append([]byte(nil), line...)
	return event, nil
}
