package junitxml

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joshdk/go-junit"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/golden"

	"gotest.tools/gotestfail/testjson"
)

func newResultSet() testjson.ResultSet {
	return testjson.ResultSet{
		{Name: "TestPass", Package: "example.com/demo", Status: testjson.ActionPass, Elapsed: 0.5},
		{
			Name:    "TestFoo",
			Package: "example.com/demo",
			Status:  testjson.ActionFail,
			Elapsed: 0.25,
			Failures: []testjson.LocatedFailure{
				{
					Filename:     "demo_test.go",
					Line:         10,
					Message:      "expected 1, got 2",
					RawLines:     []string{"    demo_test.go:10: expected 1, got 2\n", "        extra detail line\n"},
					CombinedText: "expected 1, got 2\nextra detail line",
				},
			},
		},
		{
			Name:    "TestSkip",
			Package: "example.com/other",
			Status:  testjson.ActionSkip,
			Failures: []testjson.LocatedFailure{
				{
					Filename:     "other_test.go",
					Line:         5,
					Message:      "not on this platform",
					RawLines:     []string{"    other_test.go:5: not on this platform\n"},
					CombinedText: "not on this platform",
				},
			},
		},
		{Name: "TestPanic", Package: "example.com/other", Status: testjson.ActionFail},
	}
}

func TestWrite(t *testing.T) {
	out := new(bytes.Buffer)
	t.Setenv("GOVERSION", "go7.7.7")
	err := Write(out, newResultSet(), Config{
		ProjectName:     "test",
		customTimestamp: new(time.Time).Format(time.RFC3339),
	})
	assert.NilError(t, err)
	golden.Assert(t, out.String(), "junitxml-report.golden")
}

func TestWrite_ReadByJUnitParser(t *testing.T) {
	out := new(bytes.Buffer)
	t.Setenv("GOVERSION", "go7.7.7")
	err := Write(out, newResultSet(), Config{
		FormatTestSuiteName: func(name string) string {
			return strings.TrimPrefix(name, "example.com/")
		},
	})
	assert.NilError(t, err)

	suites, err := junit.Ingest(out.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, len(suites), 2)
	assert.Equal(t, suites[0].Name, "demo")
	assert.Equal(t, suites[1].Name, "other")

	type status struct {
		Name   string
		Status junit.Status
	}
	var actual []status
	for _, suite := range suites {
		for _, test := range suite.Tests {
			actual = append(actual, status{Name: test.Name, Status: test.Status})
		}
	}
	expected := []status{
		{Name: "TestPass", Status: junit.StatusPassed},
		{Name: "TestFoo", Status: junit.StatusFailed},
		{Name: "TestSkip", Status: junit.StatusSkipped},
		{Name: "TestPanic", Status: junit.StatusFailed},
	}
	assert.DeepEqual(t, actual, expected)
	assert.Assert(t, suites[0].Tests[1].Error != nil)
}

func TestWrite_Empty(t *testing.T) {
	out := new(bytes.Buffer)
	t.Setenv("GOVERSION", "go7.7.7")
	assert.NilError(t, Write(out, nil, Config{}))

	suites, err := junit.Ingest(out.Bytes())
	assert.NilError(t, err)
	assert.Equal(t, len(suites), 0)
}
