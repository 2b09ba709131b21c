// Package parse implements the tool command which aggregates the output of a
// previous go test -json run.
package parse

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gotest.tools/gotestfail/log"
	"gotest.tools/gotestfail/testjson"
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
	return run(opts)
}

func setupFlags(name string) (*pflag.FlagSet, *options) {
	opts := &options{stdin: os.Stdin, stdout: os.Stdout}
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {
		usage(os.Stdout, name, flags)
	}
	flags.StringVar(&opts.jsonfile, "jsonfile", os.Getenv("GOTESTFAIL_JSONFILE"),
		"path to test2json output, defaults to stdin")
	flags.BoolVar(&opts.all, "all", false,
		"print all tests, not only failed tests with a file:line")
	flags.StringVarP(&opts.format, "format", "f", "standard",
		"print format of test results, one of: "+strings.Join(testjson.Formats, ", "))
	flags.BoolVar(&opts.strict, "strict", false,
		"fail on any line which is not a valid test event")
	flags.BoolVar(&opts.debug, "debug", false,
		"enable debug logging.")
	return flags, opts
}

func usage(out io.Writer, name string, flags *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage:
    %[1]s [flags]

Read a json file and print the failures of each failed test. The json file
may be created with 'gotestfail --jsonfile' or 'go test -json'.

By default lines which are not valid test events, such as build errors, are
ignored. Use --strict to stop at the first invalid line.

Flags:
`, name)
	flags.SetOutput(out)
	flags.PrintDefaults()
}

type options struct {
	jsonfile string
	all      bool
	format   string
	strict   bool
	debug    bool

	stdin  io.Reader
	stdout io.Writer
}

func run(opts *options) error {
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	}
	formatter := testjson.NewResultFormatter(opts.stdout, opts.format)
	if formatter == nil {
		return errors.Errorf("unknown format %s, must be one of: %s",
			opts.format, strings.Join(testjson.Formats, ", "))
	}

	in, err := jsonfileReader(opts)
	if err != nil {
		return errors.Wrap(err, "failed to read jsonfile")
	}
	defer func() {
		if err := in.Close(); err != nil {
			log.Errorf("Failed to close file %v: %v", opts.jsonfile, err)
		}
	}()

	cfg := testjson.ScanConfig{Stdout: in, AllTests: opts.all}
	if !opts.strict {
		cfg.HandleBadEvent = func(err *testjson.MalformedEventError) error {
			log.Debugf("ignoring line: %v", err)
			return nil
		}
	}
	results, err := testjson.ScanTestOutput(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to scan testjson")
	}
	return formatter.Format(results)
}

func jsonfileReader(opts *options) (io.ReadCloser, error) {
	switch opts.jsonfile {
	case "", "-":
		return io.NopCloser(opts.stdin), nil
	default:
		return os.Open(opts.jsonfile)
	}
}
