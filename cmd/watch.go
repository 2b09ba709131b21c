package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"gotest.tools/gotestfail/internal/filewatcher"
	"gotest.tools/gotestfail/log"
)

func runWatcher(ctx context.Context, opts *options) error {
	dir := opts.dir
	if dir == "" {
		dir = "."
	}
	if f, ok := opts.stdout.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintln(opts.stdout, "Press r to run the last package again, or a to run all packages.")
	}

	cfg := filewatcher.Config{Dirs: []string{dir}, Out: opts.stdout}
	return filewatcher.Watch(ctx, cfg, func(event filewatcher.Event) error {
		pkg, err := watchPkgArg(event.PkgPath)
		if err != nil {
			return err
		}
		switch err := runOnce(ctx, opts, pkg); {
		case err == nil, IsExitCoder(err), ctx.Err() != nil:
		default:
			log.Errorf("%v", err)
		}
		return nil
	})
}

// watchPkgArg converts the package path from a watch event, which is
// relative to the working directory, into an absolute path so that it can be
// used with --dir. "./..." is left as is, it refers to every package in the
// directory used to run go test.
func watchPkgArg(pkgPath string) (string, error) {
	if pkgPath == "./..." || filepath.IsAbs(pkgPath) {
		return pkgPath, nil
	}
	return filepath.Abs(pkgPath)
}
