package testjson

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ResultSet is the list of TestResult from a test2json stream, ordered by
// package and then by test, in the order they first appeared.
type ResultSet []TestResult

// Failed returns the failed tests.
func (r ResultSet) Failed() ResultSet {
	var failed ResultSet
	for _, tc := range r {
		if tc.Failed() {
			failed = append(failed, tc)
		}
	}
	return failed
}

// Located returns the failed tests with at least one LocatedFailure. This is
// the set of results returned when all tests are not requested.
func (r ResultSet) Located() ResultSet {
	located := ResultSet{}
	for _, tc := range r {
		if isLocatedFailure(tc) {
			located = append(located, tc)
		}
	}
	return located
}

func isLocatedFailure(tc TestResult) bool {
	return tc.Status == ActionFail && len(tc.Failures) > 0
}

// Packages returns the name of every package, in order.
func (r ResultSet) Packages() []string {
	var pkgs []string
	seen := make(map[string]bool)
	for _, tc := range r {
		if !seen[tc.Package] {
			seen[tc.Package] = true
			pkgs = append(pkgs, tc.Package)
		}
	}
	return pkgs
}

// Aggregate parses raw test2json output and returns the result of each test.
// If allTests is false only the failed tests with at least one located
// failure are returned. Blank lines are ignored, any other line which can
// not be parsed returns an error.
func Aggregate(raw string, allTests bool) (ResultSet, error) {
	var events []TestEvent
	for _, line := range strings.Split(raw, "\n") {
		if line == "" {
			continue
		}
		event, err := ParseEvent([]byte(line))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return NewResultSet(GroupEvents(events), allTests)
}

// NewResultSet builds a TestResult from each group of events.
func NewResultSet(groups *EventGroups, allTests bool) (ResultSet, error) {
	results := ResultSet{}
	for _, key := range groups.Keys() {
		tc, err := NewTestResult(groups.Events(key))
		if err != nil {
			return nil, err
		}
		if allTests || isLocatedFailure(tc) {
			results = append(results, tc)
		}
	}
	return results, nil
}

// ScanConfig used by ScanTestOutput
type ScanConfig struct {
	// Stdout is the test2json output.
	Stdout io.Reader
	// Stderr is optional. Each line is passed to HandleStderr.
	Stderr io.Reader
	// AllTests includes tests which passed or were skipped in the results.
	AllTests bool
	// HandleBadEvent is called with any line from Stdout that could not be
	// parsed. If it returns nil the line is ignored and scanning continues.
	// If HandleBadEvent is nil any bad line stops the scan with an error.
	HandleBadEvent func(err *MalformedEventError) error
	// HandleEvent is called with each event in the order they are read. An
	// error stops the scan.
	HandleEvent func(event TestEvent) error
	// HandleStderr is called for each line read from Stderr.
	HandleStderr func(line string)
}

// maxLineSize is large enough for the output of a benchmark or a test that
// logs a large value on a single line.
const maxLineSize = 16 << 20

// ScanTestOutput reads test2json lines from Stdout, and any lines from Stderr,
// and returns the results.
func ScanTestOutput(config ScanConfig) (ResultSet, error) {
	groups := newEventGroups()
	var group errgroup.Group
	group.Go(func() error {
		return readStdout(config, groups)
	})
	if config.Stderr != nil {
		group.Go(func() error {
			return readStderr(config)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return NewResultSet(groups, config.AllTests)
}

func readStdout(config ScanConfig, groups *EventGroups) error {
	scanner := bufio.NewScanner(config.Stdout)
	scanner.Buffer(nil, maxLineSize)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		event, err := ParseEvent(raw)
		if err != nil {
			bad, ok := err.(*MalformedEventError)
			if !ok || config.HandleBadEvent == nil {
				return err
			}
			if err := config.HandleBadEvent(bad); err != nil {
				return err
			}
			continue
		}
		if config.HandleEvent != nil {
			if err := config.HandleEvent(event); err != nil {
				return err
			}
		}
		groups.add(event)
	}
	return errors.Wrap(scanner.Err(), "failed to scan test output")
}

func readStderr(config ScanConfig) error {
	scanner := bufio.NewScanner(config.Stderr)
	for scanner.Scan() {
		if config.HandleStderr != nil {
			config.HandleStderr(scanner.Text())
		}
	}
	return errors.Wrap(scanner.Err(), "failed to scan test stderr")
}
