// Package list implements the tool command which lists the tests, benchmarks,
// examples, and fuzz tests of a package.
package list

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/build"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"gotest.tools/gotestfail/log"
)

// Run the command
func Run(name string, args []string) error {
	flags, opts := setupFlags(name)
	switch err := flags.Parse(args); {
	case err == pflag.ErrHelp:
		return nil
	case err != nil:
		usage(os.Stderr, name, flags)
		return err
	}
	if flags.NArg() > 1 {
		usage(os.Stderr, name, flags)
		return errors.Errorf("expected at most one argument, got %d", flags.NArg())
	}
	opts.path = flags.Arg(0)
	return run(opts)
}

func setupFlags(name string) (*pflag.FlagSet, *options) {
	opts := &options{stdout: os.Stdout}
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.Usage = func() {
		usage(os.Stdout, name, flags)
	}
	flags.StringSliceVar(&opts.tags, "tags", nil, "build tags used to select files")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging.")
	return flags, opts
}

func usage(out io.Writer, name string, flags *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage:
    %[1]s [flags] [FILE|DIR]

Print a JSON object listing the tests, benchmarks, examples, and fuzz tests
in the package in DIR, or the package containing FILE. Defaults to the
package in the working directory.

Flags:
`, name)
	flags.SetOutput(out)
	flags.PrintDefaults()
}

type options struct {
	path  string
	tags  []string
	debug bool

	stdout io.Writer
}

func run(opts *options) error {
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	}
	dir, err := packageDir(opts.path)
	if err != nil {
		return err
	}
	ctxt := build.Default
	ctxt.BuildTags = append(ctxt.BuildTags, opts.tags...)

	resp, err := List(&ctxt, dir)
	if err != nil {
		return err
	}
	return json.NewEncoder(opts.stdout).Encode(resp)
}

func packageDir(path string) (string, error) {
	if path == "" {
		path = "."
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}
	return filepath.Abs(path)
}

// FuncDefinition is the location of a test function.
type FuncDefinition struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Doc      string `json:"comment,omitempty"`
}

// Response is the output of the list command.
type Response struct {
	PkgName    string            `json:"pkg_name"`
	PkgRoot    string            `json:"pkg_root"`
	Tests      []*FuncDefinition `json:"tests,omitempty"`
	Benchmarks []*FuncDefinition `json:"benchmarks,omitempty"`
	Examples   []*FuncDefinition `json:"examples,omitempty"`
	Fuzz       []*FuncDefinition `json:"fuzz,omitempty"`
}

// List the test functions of the package in dir. The test files are parsed
// concurrently.
func List(ctxt *build.Context, dir string) (*Response, error) {
	pkg, err := ctxt.ImportDir(dir, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to import %v", dir)
	}
	resp := &Response{PkgName: pkg.Name, PkgRoot: projectRoot(dir)}

	names := append(append([]string{}, pkg.TestGoFiles...), pkg.XTestGoFiles...)
	if len(names) == 0 {
		return resp, nil
	}

	fset := token.NewFileSet()
	v := new(testVisitor)
	group := new(errgroup.Group)
	for _, name := range names {
		filename := filepath.Join(dir, name)
		group.Go(func() error {
			file, err := parser.ParseFile(fset, filename, nil, parser.ParseComments)
			if err != nil {
				return err
			}
			ast.Walk(v, file)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	resp.Tests = definitions(fset, v.tests)
	resp.Benchmarks = definitions(fset, v.benchmarks)
	resp.Examples = definitions(fset, v.examples)
	resp.Fuzz = definitions(fset, v.fuzz)
	return resp, nil
}

// projectRoot returns the closest parent of dir which contains a go.mod,
// or dir when there is none.
func projectRoot(dir string) string {
	for current := dir; ; {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current
		}
		parent := filepath.Dir(current)
		if parent == current {
			return filepath.Clean(dir)
		}
		current = parent
	}
}

type testVisitor struct {
	mu         sync.Mutex
	tests      []*ast.FuncDecl
	benchmarks []*ast.FuncDecl
	examples   []*ast.FuncDecl
	fuzz       []*ast.FuncDecl
}

func (v *testVisitor) Visit(node ast.Node) ast.Visitor {
	decl, ok := node.(*ast.FuncDecl)
	if !ok || decl.Name == nil || decl.Recv != nil {
		return v
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	switch name := decl.Name.Name; {
	case strings.HasPrefix(name, "Test"):
		v.tests = append(v.tests, decl)
	case strings.HasPrefix(name, "Benchmark"):
		v.benchmarks = append(v.benchmarks, decl)
	case strings.HasPrefix(name, "Example"):
		v.examples = append(v.examples, decl)
	case strings.HasPrefix(name, "Fuzz"):
		v.fuzz = append(v.fuzz, decl)
	}
	return v
}

// definitions are sorted by name, since the files are parsed in any order.
func definitions(fset *token.FileSet, decls []*ast.FuncDecl) []*FuncDefinition {
	if len(decls) == 0 {
		return nil
	}
	defs := make([]*FuncDefinition, len(decls))
	for i, decl := range decls {
		pos := fset.Position(decl.Pos())
		defs[i] = &FuncDefinition{
			Name:     decl.Name.Name,
			Filename: pos.Filename,
			Line:     pos.Line,
			Doc:      decl.Doc.Text(),
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Name < defs[j].Name
	})
	return defs
}
