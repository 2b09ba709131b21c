package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gotest.tools/gotestfail/internal/issues"
	"gotest.tools/gotestfail/internal/junitxml"
	"gotest.tools/gotestfail/log"
	"gotest.tools/gotestfail/testjson"
)

// resultHandler receives the events read from go test, and handles the
// results once the output has been read.
type resultHandler struct {
	opts     *options
	jsonFile io.WriteCloser
}

func newResultHandler(opts *options) (*resultHandler, error) {
	handler := &resultHandler{opts: opts}
	if opts.jsonFile == "" {
		return handler, nil
	}
	_ = os.MkdirAll(filepath.Dir(opts.jsonFile), 0o755)
	var err error
	handler.jsonFile, err = os.Create(opts.jsonFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open JSON file")
	}
	return handler, nil
}

func (h *resultHandler) event(event testjson.TestEvent) error {
	return h.writeJSONLine(event.Bytes())
}

func (h *resultHandler) writeJSONLine(line []byte) error {
	if h.jsonFile == nil {
		return nil
	}
	if _, err := h.jsonFile.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "failed to write JSON file")
	}
	return nil
}

// badEvent handles lines which are not valid test events. Events with an
// action added by a newer version of go test are written to the jsonfile,
// and otherwise ignored. Any other line, usually a build error, is printed
// to stderr.
func (h *resultHandler) badEvent(err *testjson.MalformedEventError) error {
	var actionErr *testjson.InvalidActionError
	if errors.As(err, &actionErr) {
		log.Debugf("ignoring event: %v", err)
		return h.writeJSONLine([]byte(err.Line))
	}
	_, _ = fmt.Fprintln(h.opts.stderr, err.Line)
	return nil
}

func (h *resultHandler) handleResults(ctx context.Context, results testjson.ResultSet) error {
	display := results.Located()
	if h.opts.all {
		display = results
	}
	formatter := testjson.NewResultFormatter(h.opts.stdout, h.opts.format)
	if err := formatter.Format(display); err != nil {
		return errors.Wrap(err, "failed to print results")
	}
	if err := writeJUnitFile(h.opts, results); err != nil {
		return err
	}
	return syncIssues(ctx, h.opts, results)
}

func (h *resultHandler) Close() error {
	if h.jsonFile == nil {
		return nil
	}
	if err := h.jsonFile.Close(); err != nil {
		log.Errorf("Failed to close JSON file: %v", err)
		return err
	}
	return nil
}

func writeJUnitFile(opts *options, results testjson.ResultSet) error {
	if opts.junitFile == "" {
		return nil
	}
	_ = os.MkdirAll(filepath.Dir(opts.junitFile), 0o755)
	junitFile, err := os.Create(opts.junitFile)
	if err != nil {
		return errors.Wrap(err, "failed to open JUnit file")
	}
	defer func() {
		if err := junitFile.Close(); err != nil {
			log.Errorf("Failed to close JUnit file: %v", err)
		}
	}()

	return junitxml.Write(junitFile, results, junitxml.Config{
		ProjectName:             opts.junitProjectName,
		FormatTestSuiteName:     opts.junitTestSuiteNameFormat.Value(),
		FormatTestCaseClassname: opts.junitTestCaseClassnameFormat.Value(),
	})
}

func syncIssues(ctx context.Context, opts *options, results testjson.ResultSet) error {
	if opts.githubRepo.owner == "" {
		return nil
	}
	reporter := issues.NewReporter(ctx, opts.githubToken, opts.githubRepo.owner, opts.githubRepo.name)
	summary, err := reporter.Sync(ctx, results)
	if err != nil {
		return err
	}
	log.Debugf("issues: %d created, %d updated, %d closed",
		summary.Created, summary.Updated, summary.Closed)
	return nil
}
