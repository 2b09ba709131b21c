package tool

import (
	"fmt"
	"io"
	"os"

	"gotest.tools/gotestfail/cmd/tool/function"
	"gotest.tools/gotestfail/cmd/tool/install"
	"gotest.tools/gotestfail/cmd/tool/list"
	"gotest.tools/gotestfail/cmd/tool/parse"
)

// Run one of the tool commands.
func Run(name string, args []string) error {
	if len(args) == 0 {
		usage(os.Stderr, name)
		return fmt.Errorf("a command is required")
	}
	next := name + " " + args[0]
	switch args[0] {
	case "parse":
		return parse.Run(next, args[1:])
	case "list":
		return list.Run(next, args[1:])
	case "function":
		return function.Run(next, args[1:])
	case "install":
		return install.Run(next, args[1:])
	case "help", "--help", "-h":
		usage(os.Stdout, name)
		return nil
	}
	usage(os.Stderr, name)
	return fmt.Errorf("invalid command: %v %v", name, args[0])
}

func usage(out io.Writer, name string) {
	fmt.Fprintf(out, `Usage:
    %[1]s COMMAND [flags]

Commands:
    parse                   print the failures from a go test -json output file
    list                    list the tests, benchmarks, examples and fuzz tests of a package
    function                print the name of the function at FILE:LINE:COL
    install                 build a helper binary from source when it is out of date

Use '%[1]s COMMAND --help' for the flags of each command.
`, name)
}
