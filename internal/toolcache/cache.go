/*
Package toolcache keeps a helper binary built from source up to date.

A Cache checks the binary at most once. The version of the binary is
compared against a version derived from the go toolchain and a hash of the
source files, and the binary is rebuilt when they differ.
*/
package toolcache // import "gotest.tools/gotestfail/internal/toolcache"

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"gotest.tools/gotestfail/internal/runner"
	"gotest.tools/gotestfail/log"
)

// ToolProvider returns the path to a helper binary, installing or updating it
// if necessary.
type ToolProvider interface {
	Ensure(ctx context.Context) (string, error)
}

// Cache is a ToolProvider for a binary built with go build. The zero value
// is not usable, Exe and SourceDir are required.
type Cache struct {
	// Exe is the path of the installed binary.
	Exe string
	// SourceDir is the root of the module containing the binary's source.
	SourceDir string
	// Package to build, relative to SourceDir. Defaults to ".".
	Package string
	// GoExe is the go command. Defaults to "go".
	GoExe string
	// Timeout for each go command.
	Timeout time.Duration

	mu       sync.Mutex
	checked  bool
	err      error
	expected string
}

var _ ToolProvider = (*Cache)(nil)

// Ensure checks that Exe is installed and has the expected version, and
// rebuilds it if it does not. Only the first call checks the binary, later
// calls return the same result. A call which fails because ctx was cancelled
// is not remembered.
func (c *Cache) Ensure(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.checked {
		return c.Exe, c.err
	}

	err := c.install(ctx)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	c.checked, c.err = true, err
	return c.Exe, err
}

// ExpectedVersion returns the version the installed binary should report.
func (c *Cache) ExpectedVersion(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expectedVersion(ctx)
}

func (c *Cache) expectedVersion(ctx context.Context) (string, error) {
	if c.expected != "" {
		return c.expected, nil
	}
	goVersion, err := c.goVersion(ctx)
	if err != nil {
		return "", err
	}
	hash, err := hashSources(c.SourceDir)
	if err != nil {
		return "", err
	}
	c.expected = goVersion + "-" + hash
	return c.expected, nil
}

func (c *Cache) install(ctx context.Context) error {
	expected, err := c.expectedVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to determine expected version")
	}

	switch current, err := c.version(ctx, c.Exe); {
	case err != nil:
		log.Debugf("rebuilding %s: %v", c.Exe, err)
	case current != expected:
		log.Debugf("rebuilding %s: outdated (%s -> %s)", c.Exe, current, expected)
	default:
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.Exe), 0o755); err != nil {
		return errors.Wrap(err, "failed to create bin directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.Exe), filepath.Base(c.Exe)+"-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() {
		if err := os.Remove(tmpName); err != nil && !os.IsNotExist(err) {
			log.Warnf("failed to remove %s: %v", tmpName, err)
		}
	}()

	pkg := c.Package
	if pkg == "" {
		pkg = "."
	}
	_, err = c.output(ctx, c.SourceDir,
		c.goExe(), "build", "-ldflags=-X main.version="+expected, "-o", tmpName, pkg)
	if err != nil {
		return errors.Wrapf(err, "failed to build %s", c.Exe)
	}

	built, err := c.version(ctx, tmpName)
	if err != nil {
		return err
	}
	if built != expected {
		return errors.Errorf("expected version %s, built binary reported %s", expected, built)
	}
	return errors.Wrap(os.Rename(tmpName, c.Exe), "failed to install binary")
}

func (c *Cache) goExe() string {
	if c.GoExe == "" {
		return "go"
	}
	return c.GoExe
}

func (c *Cache) version(ctx context.Context, exe string) (string, error) {
	if _, err := os.Stat(exe); err != nil {
		return "", err
	}
	return c.output(ctx, "", exe, "version")
}

func (c *Cache) goVersion(ctx context.Context) (string, error) {
	out, err := c.output(ctx, "", c.goExe(), "version")
	if err != nil {
		return "", err
	}
	return parseGoVersion(out), nil
}

// parseGoVersion returns the version from the output of go version.
func parseGoVersion(out string) string {
	for _, prefix := range []string{"go version devel ", "go version "} {
		if strings.HasPrefix(out, prefix) {
			out = strings.TrimPrefix(out, prefix)
			break
		}
	}
	if fields := strings.Fields(out); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// output runs a command and returns its output with trailing whitespace
// removed. A non-zero exit code is an error which includes the output.
func (c *Cache) output(ctx context.Context, dir string, args ...string) (string, error) {
	result, err := runner.Run(ctx, runner.Config{Args: args, Dir: dir, Timeout: c.Timeout})
	if err != nil {
		return "", err
	}
	out := strings.TrimRightFunc(string(result.Output), unicode.IsSpace)
	if result.ExitCode != 0 {
		return "", errors.Errorf("%s exited with %d: %s",
			strings.Join(args, " "), result.ExitCode, out)
	}
	return out, nil
}

// hashSources returns the first 8 hex digits of a sha256 over the path and
// contents of every go source file, go.mod, and go.sum under root.
func hashSources(root string) (string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if name := d.Name(); strings.HasSuffix(name, ".go") || name == "go.mod" || name == "go.sum" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to find source files")
	}
	sort.Strings(files)

	h := sha256.New()
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return "", err
		}
		_, _ = io.WriteString(h, filepath.ToSlash(rel))
		if err := hashFile(h, path); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:8], nil
}

func skipDir(name string) bool {
	switch name {
	case "vendor", "testdata":
		return true
	}
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		// removed since the walk
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close() // nolint:errcheck
	_, err = io.Copy(w, f)
	return err
}
