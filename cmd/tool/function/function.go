// Package function implements the tool command which prints the name of the
// function enclosing a position in a Go file.
package function

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/tools/go/ast/astutil"
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
	if flags.NArg() != 1 {
		usage(os.Stderr, name, flags)
		return errors.New("expected one FILE:LINE:COL argument")
	}
	opts.query = flags.Arg(0)
	return run(opts)
}

func setupFlags(name string) (*pflag.FlagSet, *options) {
	opts := &options{stdout: os.Stdout}
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.Usage = func() {
		usage(os.Stdout, name, flags)
	}
	return flags, opts
}

func usage(out io.Writer, name string, flags *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage:
    %[1]s FILE:LINE:COL

Print a JSON object with the name of the function which contains the
position. If there is no function at the position the object has an error
field instead.

Example:
    %[1]s ./main_test.go:12:8
`, name)
	flags.SetOutput(out)
	flags.PrintDefaults()
}

type options struct {
	query string

	stdout io.Writer
}

type response struct {
	Name  string `json:"name"`
	Error string `json:"error,omitempty"`
}

func run(opts *options) error {
	pos, err := ParseFileQuery(opts.query)
	if err != nil {
		return err
	}
	src, err := os.ReadFile(pos.Filename)
	if err != nil {
		return err
	}

	var resp response
	resp.Name, err = ContainingFunction(pos.Filename, src, pos.Line, pos.Column)
	if err != nil {
		resp.Error = err.Error()
	}
	return json.NewEncoder(opts.stdout).Encode(resp)
}

// ParseFileQuery parses a position in the FILE:LINE:COL form. The filename
// may contain a colon.
func ParseFileQuery(query string) (token.Position, error) {
	rest, col, err := cutNumber(query)
	if err != nil {
		return token.Position{}, errors.Wrap(err, "invalid file query: column")
	}
	name, line, err := cutNumber(rest)
	if err != nil {
		return token.Position{}, errors.Wrap(err, "invalid file query: line")
	}
	return token.Position{Filename: name, Line: line, Column: col}, nil
}

func cutNumber(s string) (string, int, error) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", 0, errors.New("missing")
	}
	n, err := strconv.Atoi(s[i+1:])
	return s[:i], n, err
}

// NoContainingFunctionError is returned when the position is not inside a
// function declaration.
type NoContainingFunctionError struct {
	Filename string
	Line     int
	Column   int
}

func (e *NoContainingFunctionError) Error() string {
	return fmt.Sprintf("no containing function at: %s:%d:%d", e.Filename, e.Line, e.Column)
}

// ContainingFunction returns the name of the function declaration which
// encloses the line and column of src. A column of 0 means the start of the
// line.
func ContainingFunction(filename string, src []byte, line, column int) (string, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.SkipObjectResolution)
	if file == nil {
		return "", err
	}

	tokFile := fset.File(file.Pos())
	if tokFile == nil {
		return "", errors.New("no position information for file")
	}
	if n := tokFile.LineCount(); line < 1 || line > n {
		return "", errors.Errorf("invalid line number %d (should be between 1 and %d)", line, n)
	}
	pos := tokFile.LineStart(line)
	if column > 1 {
		offset := tokFile.Offset(pos) + column - 1
		if offset > tokFile.Size() {
			offset = tokFile.Size()
		}
		pos = tokFile.Pos(offset)
	}

	path, _ := astutil.PathEnclosingInterval(file, pos, pos)
	for _, node := range path {
		if decl, ok := node.(*ast.FuncDecl); ok && decl.Name != nil {
			return decl.Name.Name, nil
		}
	}
	return "", &NoContainingFunctionError{Filename: filename, Line: line, Column: column}
}
