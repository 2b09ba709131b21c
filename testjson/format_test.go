package testjson

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/golden"
)

func patchPkgPathPrefix(t *testing.T, val string) {
	t.Helper()
	var oldVal string
	oldVal, pkgPathPrefix = pkgPathPrefix, val
	t.Cleanup(func() { pkgPathPrefix = oldVal })
}

func patchNoColor(t *testing.T) {
	t.Helper()
	var oldVal bool
	oldVal, color.NoColor = color.NoColor, true
	t.Cleanup(func() { color.NoColor = oldVal })
}

func scanGolden(t *testing.T, allTests bool) ResultSet {
	t.Helper()
	results, err := ScanTestOutput(ScanConfig{
		Stdout:   bytes.NewReader(golden.Get(t, "go-test-json.out")),
		AllTests: allTests,
	})
	assert.NilError(t, err)
	return results
}

func TestResultFormatter(t *testing.T) {
	type testCase struct {
		format   string
		allTests bool
		expected string
	}

	run := func(t *testing.T, tc testCase) {
		patchPkgPathPrefix(t, "gotest.tools/gotestfail")
		patchNoColor(t)

		out := new(bytes.Buffer)
		formatter := NewResultFormatter(out, tc.format)
		assert.Assert(t, formatter != nil)

		err := formatter.Format(scanGolden(t, tc.allTests))
		assert.NilError(t, err)
		golden.Assert(t, out.String(), tc.expected)
	}

	var testCases = []testCase{
		{format: "standard", allTests: true, expected: "standard-format.out"},
		{format: "short", allTests: true, expected: "short-format.out"},
		{format: "json", expected: "json-format.out"},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			run(t, tc)
		})
	}
}

func TestResultFormatter_JSONWithNoResults(t *testing.T) {
	out := new(bytes.Buffer)
	err := NewResultFormatter(out, "json").Format(nil)
	assert.NilError(t, err)
	assert.Equal(t, out.String(), "[]\n")
}

func TestNewResultFormatter_UnknownFormat(t *testing.T) {
	assert.Assert(t, NewResultFormatter(new(bytes.Buffer), "dots") == nil)
}
