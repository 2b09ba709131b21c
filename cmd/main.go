package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gotest.tools/gotestfail/internal/runner"
	"gotest.tools/gotestfail/log"
	"gotest.tools/gotestfail/testjson"
)

// Run the gotestfail command. version is printed by --version.
func Run(name, version string, args []string) error {
	flags, opts := setupFlags(name)
	switch err := flags.Parse(args); {
	case err == pflag.ErrHelp:
		return nil
	case err != nil:
		usage(os.Stderr, name, flags)
		return err
	}
	opts.args = flags.Args()
	setupLogging(opts)

	if opts.version {
		fmt.Fprintf(opts.stdout, "gotestfail version %s\n", version)
		return nil
	}
	return run(opts)
}

func setupFlags(name string) (*pflag.FlagSet, *options) {
	opts := &options{
		env:                          &envValue{},
		githubRepo:                   &repoValue{},
		junitTestCaseClassnameFormat: &junitFieldFormatValue{},
		junitTestSuiteNameFormat:     &junitFieldFormatValue{},
		githubToken:                  os.Getenv("GITHUB_TOKEN"),
		stdout:                       os.Stdout,
		stderr:                       os.Stderr,
	}
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.Usage = func() {
		usage(os.Stdout, name, flags)
	}
	flags.StringVarP(&opts.format, "format", "f",
		lookEnvWithDefault("GOTESTFAIL_FORMAT", "standard"),
		"print format of test results, one of: "+strings.Join(testjson.Formats, ", "))
	flags.BoolVar(&opts.all, "all", false,
		"print all tests, not only failed tests with a file:line")
	flags.StringVar(&opts.run, "run", "",
		"run only the test with this name, sub-tests are separated by /")
	flags.BoolVar(&opts.short, "short", false, "run go test with -short")
	flags.DurationVar(&opts.timeout, "timeout", lookDurationWithDefault("GOTESTFAIL_TIMEOUT", 0),
		"kill go test if it runs longer than this duration")
	flags.StringVar(&opts.dir, "dir", "", "run go test in this directory")
	flags.Var(opts.env, "env", "set an environment variable for go test, as KEY=VALUE")

	flags.StringVar(&opts.jsonFile, "jsonfile",
		lookEnvWithDefault("GOTESTFAIL_JSONFILE", ""),
		"write all TestEvents to file")
	flags.StringVar(&opts.junitFile, "junitfile",
		lookEnvWithDefault("GOTESTFAIL_JUNITFILE", ""),
		"write a JUnit XML file")
	flags.StringVar(&opts.junitProjectName, "junitfile-project-name", "",
		"name of the project used in the junit.xml file")
	flags.Var(opts.junitTestSuiteNameFormat, "junitfile-testsuite-name",
		"format the testsuite name field as: "+junitFieldFormatValues)
	flags.Var(opts.junitTestCaseClassnameFormat, "junitfile-testcase-classname",
		"format the testcase classname field as: "+junitFieldFormatValues)
	flags.Var(opts.githubRepo, "github-repo",
		"create an issue in this owner/name repository for each failed test, requires GITHUB_TOKEN")

	flags.BoolVar(&opts.watch, "watch", false,
		"watch go files, and run tests when a file is modified")
	flags.BoolVar(&opts.noColor, "no-color", color.NoColor, "disable color output")
	flags.BoolVar(&opts.debug, "debug", false, "enabled debug logging")
	flags.BoolVar(&opts.version, "version", false, "show version and exit")
	return flags, opts
}

func usage(out io.Writer, name string, flags *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage:
    %[1]s [flags] [--] [go test flags]
    %[1]s [command]

Run go test, and print the location and message of each test failure.

Flags:
`, name)
	flags.SetOutput(out)
	flags.PrintDefaults()
	fmt.Fprint(out, `
Formats:
    standard                print each failed test, and the failures it reported
    short                   print one file:line line for each failure
    json                    print the results as a JSON array

Commands:
    tool                    tools for working with test2json output and test sources
    version                 print the version and exit
`)
}

func lookEnvWithDefault(key, defValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defValue
}

func lookDurationWithDefault(key string, defValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warnf("invalid value for %s: %v", key, err)
		return defValue
	}
	return d
}

type options struct {
	args                         []string
	format                       string
	all                          bool
	run                          string
	short                        bool
	timeout                      time.Duration
	dir                          string
	env                          *envValue
	jsonFile                     string
	junitFile                    string
	junitProjectName             string
	junitTestSuiteNameFormat     *junitFieldFormatValue
	junitTestCaseClassnameFormat *junitFieldFormatValue
	githubRepo                   *repoValue
	githubToken                  string
	watch                        bool
	noColor                      bool
	debug                        bool
	version                      bool

	// shims for testing
	stdout io.Writer
	stderr io.Writer
}

func (o options) Validate() error {
	if !isKnownFormat(o.format) {
		return errors.Errorf("unknown format %s, must be one of: %s",
			o.format, strings.Join(testjson.Formats, ", "))
	}
	if o.run != "" {
		if start, _ := argIndex("run", o.args); start >= 0 {
			return errors.New("--run can not be used with a go test -run flag")
		}
	}
	if o.githubRepo.owner != "" && o.githubToken == "" {
		return errors.New("--github-repo requires the GITHUB_TOKEN environment variable")
	}
	if o.watch && o.githubRepo.owner != "" {
		return errors.New("--github-repo can not be used with --watch")
	}
	return nil
}

func isKnownFormat(format string) bool {
	for _, known := range testjson.Formats {
		if format == known {
			return true
		}
	}
	return false
}

func setupLogging(opts *options) {
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	}
	color.NoColor = opts.noColor
}

func run(opts *options) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.watch {
		return runWatcher(ctx, opts)
	}
	return runOnce(ctx, opts, "")
}

// runOnce runs go test for pkg, or the packages from the command line when
// pkg is empty, and handles the results.
func runOnce(ctx context.Context, opts *options, pkg string) error {
	result, err := runner.Run(ctx, runner.Config{
		Args:    goTestCmdArgs(opts, pkg),
		Dir:     opts.dir,
		Env:     opts.env.Value(),
		Timeout: opts.timeout,
	})
	if err != nil {
		return runError(opts, err)
	}

	handler, err := newResultHandler(opts)
	if err != nil {
		return err
	}
	defer handler.Close() // nolint: errcheck

	results, err := testjson.ScanTestOutput(testjson.ScanConfig{
		Stdout:         bytes.NewReader(result.Output),
		AllTests:       true,
		HandleBadEvent: handler.badEvent,
		HandleEvent:    handler.event,
	})
	if err != nil {
		return err
	}
	if err := handler.handleResults(ctx, results); err != nil {
		return err
	}

	switch {
	case len(results.Failed()) > 0:
		return &ExitError{Code: 1}
	case result.ExitCode != 0:
		return &ExitError{Code: result.ExitCode}
	}
	return nil
}

// runError prints any output go test wrote before it was killed or timed
// out, and returns err with context.
func runError(opts *options, err error) error {
	var runErr *runner.Error
	if errors.As(err, &runErr) && len(runErr.Output) > 0 {
		_, _ = opts.stderr.Write(runErr.Output)
	}
	return errors.Wrap(err, "failed to run go test")
}

func goTestCmdArgs(opts *options, pkg string) []string {
	args := opts.args
	result := []string{"go", "test"}

	if boolArgIndex("json", args) < 0 {
		result = append(result, "-json")
	}
	if opts.run != "" {
		result = append(result, "-run", runPattern(opts.run))
	}
	if opts.short && boolArgIndex("short", args) < 0 {
		result = append(result, "-short")
	}

	pkgArgIndex := findPkgArgPosition(args)
	result = append(result, args[:pkgArgIndex]...)
	switch {
	case pkg != "":
		result = append(result, pkg)
	case !hasPackageArg(args[:pkgArgIndex]):
		result = append(result, "./...")
	}
	return append(result, args[pkgArgIndex:]...)
}

// runPattern returns a -run pattern which matches only the test name. Each
// level of sub-test is matched separately.
func runPattern(name string) string {
	parts := strings.Split(name, "/")
	for i, part := range parts {
		parts[i] = "^" + regexp.QuoteMeta(part) + "$"
	}
	return strings.Join(parts, "/")
}

// hasPackageArg returns true if the last argument is not a flag. This is only
// a guess, a flag value which is a separate argument looks like a package.
func hasPackageArg(args []string) bool {
	return len(args) > 0 && !strings.HasPrefix(args[len(args)-1], "-")
}

func boolArgIndex(flag string, args []string) int {
	for i, arg := range args {
		if arg == "-"+flag || arg == "--"+flag {
			return i
		}
	}
	return -1
}

func argIndex(flag string, args []string) (start, end int) {
	for i, arg := range args {
		if arg == "-"+flag || arg == "--"+flag {
			return i, i + 1
		}
		if strings.HasPrefix(arg, "-"+flag+"=") || strings.HasPrefix(arg, "--"+flag+"=") {
			return i, i
		}
	}
	return -1, -1
}

// The package list is before the -args flag, or at the end of the args list
// if the -args flag is not in args.
// The -args flag is a 'go test' flag that indicates that all subsequent
// args should be passed to the test binary. It requires that the list of
// packages comes before -args.
func findPkgArgPosition(args []string) int {
	if i := boolArgIndex("args", args); i >= 0 {
		return i
	}
	return len(args)
}

// ExitError is returned by Run when any test failed, or go test exited with
// a non-zero status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the exit code that should be used for the process.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// IsExitCoder returns true if err has an exit code.
func IsExitCoder(err error) bool {
	var exitErr interface{ ExitCode() int }
	return errors.As(err, &exitErr)
}

// ExitCodeWithDefault returns the exit code from err, or 127 if err does not
// have an exit code.
func ExitCodeWithDefault(err error) int {
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 127
}

// Next splits args into the next positional argument and any remaining args.
func Next(args []string) (string, []string) {
	switch len(args) {
	case 0:
		return "", nil
	case 1:
		return args[0], nil
	}
	return args[0], args[1:]
}
