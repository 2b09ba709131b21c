package parse

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/env"
	"gotest.tools/v3/fs"
)

const events = `{"Action":"run","Package":"example.com/pkg","Test":"TestOne"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"=== RUN   TestOne\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"    one_test.go:12: wrong value\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"        more detail\n"}
{"Action":"output","Package":"example.com/pkg","Test":"TestOne","Output":"--- FAIL: TestOne (0.00s)\n"}
{"Action":"fail","Package":"example.com/pkg","Test":"TestOne","Elapsed":0}
# example.com/pkg [build failed]
{"Action":"run","Package":"example.com/pkg","Test":"TestTwo"}
{"Action":"output","Package":"example.com/pkg","Test":"TestTwo","Output":"=== RUN   TestTwo\n"}
{"Action":"pass","Package":"example.com/pkg","Test":"TestTwo","Elapsed":0}
`

func newOptions(t *testing.T, args ...string) (*options, *bytes.Buffer) {
	t.Helper()
	env.PatchAll(t, nil)
	flags, opts := setupFlags("gotestfail tool parse")
	assert.NilError(t, flags.Parse(args))
	out := new(bytes.Buffer)
	opts.stdin = strings.NewReader(events)
	opts.stdout = out
	return opts, out
}

func TestUsage_WithFlagsFromSetupFlags(t *testing.T) {
	env.PatchAll(t, nil)

	name := "gotestfail tool parse"
	flags, _ := setupFlags(name)
	buf := new(bytes.Buffer)
	usage(buf, name, flags)

	assert.Assert(t, cmp.Contains(buf.String(), "Usage:\n    gotestfail tool parse [flags]"))
	assert.Assert(t, cmp.Contains(buf.String(), "--strict"))
}

func TestRun_FromStdin(t *testing.T) {
	opts, out := newOptions(t, "--format", "short")
	assert.NilError(t, run(opts))
	assert.Equal(t, out.String(), "example.com/pkg/one_test.go:12: TestOne: wrong value\n")
}

func TestRun_All(t *testing.T) {
	patchNoColor(t)
	opts, out := newOptions(t, "--all")
	assert.NilError(t, run(opts))

	expected := `--- FAIL: TestOne (example.com/pkg)
    one_test.go:12: wrong value
        more detail
--- PASS: TestTwo (example.com/pkg)
`
	assert.Equal(t, out.String(), expected)
}

func TestRun_Strict(t *testing.T) {
	opts, _ := newOptions(t, "--strict")
	err := run(opts)
	assert.ErrorContains(t, err, "malformed test event")
}

func TestRun_FromJSONFile(t *testing.T) {
	dir := fs.NewDir(t, t.Name(), fs.WithFile("out.json", events))
	opts, out := newOptions(t, "--format", "short", "--jsonfile", filepath.Join(dir.Path(), "out.json"))
	opts.stdin = strings.NewReader("")

	assert.NilError(t, run(opts))
	assert.Equal(t, out.String(), "example.com/pkg/one_test.go:12: TestOne: wrong value\n")
}

func TestRun_MissingJSONFile(t *testing.T) {
	opts, _ := newOptions(t, "--jsonfile", filepath.Join(os.TempDir(), "does-not-exist.json"))
	err := run(opts)
	assert.ErrorContains(t, err, "failed to read jsonfile")
}

func TestRun_UnknownFormat(t *testing.T) {
	opts, _ := newOptions(t, "--format", "dots")
	err := run(opts)
	assert.ErrorContains(t, err, "unknown format dots")
}

func patchNoColor(t *testing.T) {
	orig := color.NoColor
	color.NoColor = true
	t.Cleanup(func() {
		color.NoColor = orig
	})
}
