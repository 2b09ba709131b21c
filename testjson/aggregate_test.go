package testjson

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/golden"
)

const demoStream = `{"Action":"run","Package":"demo","Test":"TestFoo"}
{"Action":"output","Package":"demo","Test":"TestFoo","Output":"=== RUN   TestFoo\n"}
{"Action":"output","Package":"demo","Test":"TestFoo","Output":"    demo_test.go:10: expected 1, got 2\n"}
{"Action":"output","Package":"demo","Test":"TestFoo","Output":"        extra detail line\n"}
{"Action":"output","Package":"demo","Test":"TestFoo","Output":"--- FAIL: TestFoo (0.00s)\n"}
{"Action":"fail","Package":"demo","Test":"TestFoo","Elapsed":0}
`

var demoResults = ResultSet{
	{
		Name:    "TestFoo",
		Package: "demo",
		Status:  ActionFail,
		Failures: []LocatedFailure{
			{
				Filename: "demo_test.go",
				Line:     10,
				Message:  "expected 1, got 2",
				RawLines: []string{
					"    demo_test.go:10: expected 1, got 2\n",
					"        extra detail line\n",
				},
				CombinedText: "expected 1, got 2\nextra detail line",
			},
		},
	},
}

func TestAggregate(t *testing.T) {
	results, err := Aggregate(demoStream, false)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, demoResults)

	again, err := Aggregate(demoStream, false)
	assert.NilError(t, err)
	assert.DeepEqual(t, again, results)
}

func TestAggregate_IgnoresBlankLines(t *testing.T) {
	raw := "\n" + strings.ReplaceAll(demoStream, "\n", "\n\n")
	results, err := Aggregate(raw, false)
	assert.NilError(t, err)
	assert.DeepEqual(t, results, demoResults)
}

func TestAggregate_Empty(t *testing.T) {
	results, err := Aggregate("", false)
	assert.NilError(t, err)
	assert.Assert(t, results != nil)
	assert.Equal(t, len(results), 0)
}

func TestAggregate_AllTests(t *testing.T) {
	raw := string(golden.Get(t, "go-test-json.out"))

	failures, err := Aggregate(raw, false)
	assert.NilError(t, err)
	assert.Equal(t, len(failures), 1)
	assert.Equal(t, failures[0].Name, "TestFoo")

	all, err := Aggregate(raw, true)
	assert.NilError(t, err)
	var names []string
	for _, tc := range all {
		names = append(names, tc.Package+"."+tc.Name)
	}
	expected := []string{
		"gotest.tools/gotestfail/demo.TestPass",
		"gotest.tools/gotestfail/demo.TestFoo",
		"example.com/other.TestSkip",
		"example.com/other.TestPanic",
	}
	assert.DeepEqual(t, names, expected)
	assert.DeepEqual(t, all.Packages(),
		[]string{"gotest.tools/gotestfail/demo", "example.com/other"})
	assert.Equal(t, len(all.Failed()), 2)
}

func TestAggregate_MalformedEvent(t *testing.T) {
	type testCase struct {
		name string
		line string
	}

	run := func(t *testing.T, tc testCase) {
		results, err := Aggregate(demoStream+tc.line+"\n", true)
		assert.Assert(t, results == nil)

		var malformed *MalformedEventError
		assert.Assert(t, errors.As(err, &malformed), "got %v", err)
		assert.Equal(t, malformed.Line, tc.line)
	}

	var testCases = []testCase{
		{name: "not json", line: "ok  	demo	0.01s"},
		{name: "unknown action", line: `{"Action":"start","Package":"demo"}`},
		{name: "missing action", line: `{"Package":"demo","Test":"TestFoo"}`},
		{name: "truncated", line: `{"Action":"output","Package":"de`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			run(t, tc)
		})
	}
}

func TestAggregate_NoTerminalAction(t *testing.T) {
	raw := `{"Action":"run","Package":"demo","Test":"TestStuck"}` + "\n"
	_, err := Aggregate(raw, true)
	var noTerminal *NoTerminalActionError
	assert.Assert(t, errors.As(err, &noTerminal))
}

func TestScanTestOutput(t *testing.T) {
	var stderr []string
	results, err := ScanTestOutput(ScanConfig{
		Stdout: bytes.NewReader(golden.Get(t, "go-test-json.out")),
		Stderr: bytes.NewReader(golden.Get(t, "go-test-json.err")),
		HandleStderr: func(line string) {
			stderr = append(stderr, line)
		},
	})
	assert.NilError(t, err)
	assert.Equal(t, len(results), 1)
	assert.DeepEqual(t, stderr, []string{"go: downloading example.com/other v1.0.0"})
}

func TestScanTestOutput_HandleBadEvent(t *testing.T) {
	stdout := `{"Action":"start","Package":"demo"}` + "\n" + demoStream + "not json\n"

	t.Run("bad events are ignored", func(t *testing.T) {
		var bad []string
		results, err := ScanTestOutput(ScanConfig{
			Stdout: strings.NewReader(stdout),
			HandleBadEvent: func(err *MalformedEventError) error {
				bad = append(bad, err.Line)
				return nil
			},
		})
		assert.NilError(t, err)
		assert.DeepEqual(t, results, demoResults)
		assert.DeepEqual(t, bad, []string{`{"Action":"start","Package":"demo"}`, "not json"})
	})

	t.Run("error from handler stops the scan", func(t *testing.T) {
		stop := errors.New("stop")
		_, err := ScanTestOutput(ScanConfig{
			Stdout: strings.NewReader(stdout),
			HandleBadEvent: func(*MalformedEventError) error {
				return stop
			},
		})
		assert.Assert(t, errors.Is(err, stop))
	})

	t.Run("without a handler", func(t *testing.T) {
		_, err := ScanTestOutput(ScanConfig{Stdout: strings.NewReader(stdout)})
		assert.ErrorContains(t, err, "malformed test event")
	})
}

func TestScanTestOutput_HandleEvent(t *testing.T) {
	var actions []Action
	results, err := ScanTestOutput(ScanConfig{
		Stdout:   strings.NewReader(demoStream),
		AllTests: true,
		HandleEvent: func(event TestEvent) error {
			actions = append(actions, event.Action)
			return nil
		},
	})
	assert.NilError(t, err)
	assert.DeepEqual(t, results, demoResults)
	expected := []Action{
		ActionRun, ActionOutput, ActionOutput, ActionOutput, ActionOutput, ActionFail,
	}
	assert.DeepEqual(t, actions, expected)
}

func TestResultSet_Located(t *testing.T) {
	all, err := Aggregate(string(golden.Get(t, "go-test-json.out")), true)
	assert.NilError(t, err)

	located := all.Located()
	assert.Equal(t, len(located), 1)
	assert.Equal(t, located[0].Name, "TestFoo")
	assert.Assert(t, ResultSet(nil).Located() != nil)
}
