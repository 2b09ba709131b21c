package testjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/fatih/color"
)

// ResultFormatter writes a ResultSet to an output.
type ResultFormatter interface {
	Format(results ResultSet) error
}

type resultFormatterFunc func(results ResultSet) error

func (f resultFormatterFunc) Format(results ResultSet) error {
	return f(results)
}

// NewResultFormatter returns a formatter for printing results, or nil if
// format is not a known format.
func NewResultFormatter(out io.Writer, format string) ResultFormatter {
	switch format {
	case "standard":
		return lineFormatter(out, standardFormat)
	case "short":
		return lineFormatter(out, shortFormat)
	case "json":
		return jsonFormatter(out)
	default:
		return nil
	}
}

// Formats is the list of formats accepted by NewResultFormatter.
var Formats = []string{"standard", "short", "json"}

func lineFormatter(out io.Writer, fn func(tc TestResult) string) ResultFormatter {
	buf := bufio.NewWriter(out)
	// nolint:errcheck // errors are returned by Flush
	return resultFormatterFunc(func(results ResultSet) error {
		for _, tc := range results {
			buf.WriteString(fn(tc))
		}
		return buf.Flush()
	})
}

func colorStatus(action Action) func(format string, a ...interface{}) string {
	switch action {
	case ActionPass:
		return color.GreenString
	case ActionFail:
		return color.RedString
	case ActionSkip:
		return color.YellowString
	}
	return color.WhiteString
}

// standardFormat prints each test like the go test --- line, followed by the
// failures in file:line: format.
func standardFormat(tc TestResult) string {
	out := new(strings.Builder)
	status := colorStatus(tc.Status)("--- %s:", strings.ToUpper(string(tc.Status)))
	fmt.Fprintf(out, "%s %s (%s)\n", status, tc.Name, RelativePackagePath(tc.Package))
	for _, f := range tc.Failures {
		lines := strings.Split(f.CombinedText, "\n")
		fmt.Fprintf(out, "    %s:%d: %s\n", f.Filename, f.Line, lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(out, "        %s\n", line)
		}
	}
	return out.String()
}

// shortFormat prints one line for each failure, using the same format as
// compiler errors so that editors can jump to the location.
func shortFormat(tc TestResult) string {
	out := new(strings.Builder)
	pkg := RelativePackagePath(tc.Package)
	for _, f := range tc.Failures {
		fmt.Fprintf(out, "%s:%d: %s: %s\n",
			path.Join(pkg, f.Filename), f.Line, tc.Name, f.ShortMessage())
	}
	return out.String()
}

func jsonFormatter(out io.Writer) ResultFormatter {
	return resultFormatterFunc(func(results ResultSet) error {
		if results == nil {
			results = ResultSet{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "    ")
		return enc.Encode(results)
	})
}
