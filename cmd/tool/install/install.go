// Package install implements the tool command which builds a helper binary
// from source, unless the installed binary is already up to date.
package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"gotest.tools/gotestfail/internal/toolcache"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return run(ctx, opts)
}

func setupFlags(name string) (*pflag.FlagSet, *options) {
	opts := &options{stdout: os.Stdout}
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.Usage = func() {
		usage(os.Stdout, name, flags)
	}
	flags.StringVar(&opts.src, "src", "", "root directory of the module to build")
	flags.StringVar(&opts.pkg, "pkg", ".", "package to build, relative to --src")
	flags.StringVar(&opts.bin, "bin", "", "path of the installed binary")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "timeout for each go command")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging.")
	return flags, opts
}

func usage(out io.Writer, name string, flags *pflag.FlagSet) {
	fmt.Fprintf(out, `Usage:
    %[1]s --src DIR --bin PATH [flags]

Build the binary at PATH from the source in DIR, unless the binary already
reports the expected version. The expected version is the version of the go
toolchain followed by a hash of the source files.

The binary must print its version when run with a 'version' argument. The
version is set with -ldflags=-X main.version=<version>.

The path of the binary is printed when it is up to date.

Flags:
`, name)
	flags.SetOutput(out)
	flags.PrintDefaults()
}

type options struct {
	src     string
	pkg     string
	bin     string
	timeout time.Duration
	debug   bool

	stdout io.Writer
}

func (o options) Validate() error {
	switch {
	case o.src == "":
		return errors.New("--src is required")
	case o.bin == "":
		return errors.New("--bin is required")
	}
	return nil
}

func run(ctx context.Context, opts *options) error {
	if opts.debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	var provider toolcache.ToolProvider = &toolcache.Cache{
		Exe:       opts.bin,
		SourceDir: opts.src,
		Package:   opts.pkg,
		Timeout:   opts.timeout,
	}
	path, err := provider.Ensure(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(opts.stdout, path)
	return err
}
