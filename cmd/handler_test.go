package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/gotestfail/testjson"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

const goTestOutput = `go: downloading example.com/dep v1.0.0
{"Action":"run","Package":"example.com/pkg","Test":"TestOne"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"=== RUN   TestOne\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"    one_test.go:12: wrong value\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"--- FAIL: TestOne (0.00s)\n"}
{"Action":"fail","Package":"example.com/pkg","Test":"TestOne","Elapsed":0}
{"Action":"run","Package":"example.com/pkg","Test":"TestTwo"}
{"Action":"output","Package":"example.com/pkg","Test":"TestTwo","Output":"=== RUN   TestTwo\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestTwo","Output":"--- PASS: TestTwo (0.00s)\n"}
{"Action":"pass","Package":"example.com/pkg","Test":"TestTwo","Elapsed":0}
{"Action":"start","Package":"example.com/pkg"}
{"Action":"fail","Package":"example.com/pkg","Elapsed":0.01}
`

func newTestOptions(t *testing.T) (*options, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	_, opts := setupFlags("gotestfail")
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	opts.stdout = stdout
	opts.stderr = stderr
	opts.format = "short"
	return opts, stdout, stderr
}

func scan(t *testing.T, handler *resultHandler) testjson.ResultSet {
	t.Helper()
	results, err := testjson.ScanTestOutput(testjson.ScanConfig{
		Stdout:         strings.NewReader(goTestOutput),
		AllTests:       true,
		HandleBadEvent: handler.badEvent,
		HandleEvent:    handler.event,
	})
	assert.NilError(t, err)
	return results
}

func TestResultHandler_BadEvent(t *testing.T) {
	opts, _, stderr := newTestOptions(t)
	handler, err := newResultHandler(opts)
	assert.NilError(t, err)

	results := scan(t, handler)
	assert.Equal(t, len(results), 2)
	assert.Equal(t, stderr.String(), "go: downloading example.com/dep v1.0.0\n")

	err = handler.badEvent(&testjson.MalformedEventError{
		Line: `{"Action":"build-output"}`,
		Err:  &testjson.InvalidActionError{Action: "build-output"},
	})
	assert.NilError(t, err)
	assert.Equal(t, stderr.String(), "go: downloading example.com/dep v1.0.0\n")
}

func TestResultHandler_HandleResults(t *testing.T) {
	opts, stdout, _ := newTestOptions(t)
	handler, err := newResultHandler(opts)
	assert.NilError(t, err)

	err = handler.handleResults(context.Background(), scan(t, handler))
	assert.NilError(t, err)
	assert.Equal(t, stdout.String(), "example.com/pkg/one_test.go:12: TestOne: wrong value\n")
}

func TestResultHandler_HandleResults_All(t *testing.T) {
	opts, stdout, _ := newTestOptions(t)
	opts.all = true
	opts.format = "standard"
	patchNoColor(t, true)
	handler, err := newResultHandler(opts)
	assert.NilError(t, err)

	err = handler.handleResults(context.Background(), scan(t, handler))
	assert.NilError(t, err)
	assert.Assert(t, cmp.Contains(stdout.String(), "--- PASS: TestTwo"))
	assert.Assert(t, cmp.Contains(stdout.String(), "--- FAIL: TestOne"))
}

func TestNewResultHandler_WritesJSONFile(t *testing.T) {
	dir := fs.NewDir(t, t.Name())
	opts, _, _ := newTestOptions(t)
	opts.jsonFile = filepath.Join(dir.Path(), "new-path", "log.json")

	handler, err := newResultHandler(opts)
	assert.NilError(t, err)
	scan(t, handler)
	assert.NilError(t, handler.Close())

	raw, err := os.ReadFile(opts.jsonFile)
	assert.NilError(t, err)
	expected := strings.SplitN(goTestOutput, "\n", 2)[1]
	assert.Equal(t, string(raw), expected)
	assert.Assert(t, cmp.Contains(string(raw), `{"Action":"start","Package":"example.com/pkg"}`+"\n"))
}

func TestWriteJunitFile_CreatesDirectory(t *testing.T) {
	dir := fs.NewDir(t, t.Name())
	t.Setenv("GOVERSION", "go1.21.0")
	opts, _, _ := newTestOptions(t)
	opts.junitFile = filepath.Join(dir.Path(), "new-path", "junit.xml")

	err := writeJUnitFile(opts, testjson.ResultSet{})
	assert.NilError(t, err)

	_, err = os.Stat(opts.junitFile)
	assert.NilError(t, err)
}
