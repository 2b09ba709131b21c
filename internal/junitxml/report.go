/*Package junitxml creates a JUnit XML report from a testjson.ResultSet.
 */
package junitxml // import "gotest.tools/gotestfail/internal/junitxml"

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gotest.tools/gotestfail/internal/runner"
	"gotest.tools/gotestfail/log"
	"gotest.tools/gotestfail/testjson"
)

// JUnitTestSuites is a collection of JUnit test suites.
type JUnitTestSuites struct {
	XMLName  xml.Name `xml:"testsuites"`
	Name     string   `xml:"name,attr,omitempty"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Errors   int      `xml:"errors,attr"`
	Time     string   `xml:"time,attr"`
	Suites   []JUnitTestSuite
}

// JUnitTestSuite is a single JUnit test suite which may contain many
// testcases.
type JUnitTestSuite struct {
	XMLName    xml.Name        `xml:"testsuite"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Time       string          `xml:"time,attr"`
	Name       string          `xml:"name,attr"`
	Properties []JUnitProperty `xml:"properties>property,omitempty"`
	TestCases  []JUnitTestCase
	Timestamp  string `xml:"timestamp,attr"`
}

// JUnitTestCase is a single test case with its result.
type JUnitTestCase struct {
	XMLName     xml.Name          `xml:"testcase"`
	Classname   string            `xml:"classname,attr"`
	Name        string            `xml:"name,attr"`
	Time        string            `xml:"time,attr"`
	SkipMessage *JUnitSkipMessage `xml:"skipped,omitempty"`
	Failure     *JUnitFailure     `xml:"failure,omitempty"`
}

// JUnitSkipMessage contains the reason why a testcase was skipped.
type JUnitSkipMessage struct {
	Message string `xml:"message,attr"`
}

// JUnitProperty represents a key/value pair used to define properties.
type JUnitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// JUnitFailure contains the located failures of a failed test.
type JUnitFailure struct {
	Message  string `xml:"message,attr"`
	Type     string `xml:"type,attr"`
	Contents string `xml:",chardata"`
}

// Config used to write a junit XML document.
type Config struct {
	ProjectName             string
	FormatTestSuiteName     FormatFunc
	FormatTestCaseClassname FormatFunc
	// This is used for tests to have a consistent timestamp
	customTimestamp string
}

// FormatFunc converts a string from one format into another.
type FormatFunc func(string) string

// Write creates an XML document with one testsuite for each package in
// results, and writes it to out.
func Write(out io.Writer, results testjson.ResultSet, cfg Config) error {
	if err := write(out, generate(results, configWithDefaults(cfg))); err != nil {
		return errors.Wrap(err, "failed to write JUnit XML")
	}
	return nil
}

func generate(results testjson.ResultSet, cfg Config) JUnitTestSuites {
	version := goVersion()
	timestamp := cfg.customTimestamp
	if timestamp == "" {
		timestamp = time.Now().Format(time.RFC3339)
	}

	suites := JUnitTestSuites{
		Name:     cfg.ProjectName,
		Tests:    len(results),
		Failures: len(results.Failed()),
	}
	var total time.Duration
	for _, pkgname := range results.Packages() {
		suite := JUnitTestSuite{
			Name:       cfg.FormatTestSuiteName(pkgname),
			Properties: packageProperties(version),
			TestCases:  []JUnitTestCase{},
			Timestamp:  timestamp,
		}
		var elapsed time.Duration
		for _, tc := range results {
			if tc.Package != pkgname {
				continue
			}
			suite.Tests++
			if tc.Failed() {
				suite.Failures++
			}
			elapsed += tc.ElapsedDuration()
			suite.TestCases = append(suite.TestCases, newJUnitTestCase(tc, cfg.FormatTestCaseClassname))
		}
		suite.Time = formatDurationAsSeconds(elapsed)
		total += elapsed
		suites.Suites = append(suites.Suites, suite)
	}
	suites.Time = formatDurationAsSeconds(total)
	return suites
}

func configWithDefaults(cfg Config) Config {
	noop := func(v string) string {
		return v
	}
	if cfg.FormatTestSuiteName == nil {
		cfg.FormatTestSuiteName = noop
	}
	if cfg.FormatTestCaseClassname == nil {
		cfg.FormatTestCaseClassname = noop
	}
	return cfg
}

func formatDurationAsSeconds(d time.Duration) string {
	return fmt.Sprintf("%f", d.Seconds())
}

func packageProperties(goVersion string) []JUnitProperty {
	return []JUnitProperty{
		{Name: "go.version", Value: goVersion},
	}
}

// goVersion returns the version as reported by the go binary in PATH. This
// version will not be the same as runtime.Version, which is always the version
// of go used to build the gotestfail binary.
//
// To skip the go version call set the GOVERSION environment variable to the
// desired value.
func goVersion() string {
	if version, ok := os.LookupEnv("GOVERSION"); ok {
		return version
	}
	result, err := runner.Run(context.Background(), runner.Config{
		Args:    []string{"go", "version"},
		Timeout: 30 * time.Second,
	})
	if err != nil || result.ExitCode != 0 {
		log.Warnf("Failed to lookup go version for junit xml: %v", err)
		return "unknown"
	}
	return strings.TrimPrefix(strings.TrimSpace(string(result.Output)), "go version ")
}

func newJUnitTestCase(tc testjson.TestResult, formatClassname FormatFunc) JUnitTestCase {
	jtc := JUnitTestCase{
		Classname: formatClassname(tc.Package),
		Name:      tc.Name,
		Time:      formatDurationAsSeconds(tc.ElapsedDuration()),
	}
	switch tc.Status {
	case testjson.ActionFail:
		jtc.Failure = &JUnitFailure{
			Message:  failureMessage(tc),
			Contents: failureContents(tc),
		}
	case testjson.ActionSkip:
		jtc.SkipMessage = &JUnitSkipMessage{Message: failureMessage(tc)}
	}
	return jtc
}

func failureMessage(tc testjson.TestResult) string {
	if len(tc.Failures) == 0 {
		if tc.Failed() {
			return "Failed"
		}
		return ""
	}
	return tc.Failures[0].ShortMessage()
}

func failureContents(tc testjson.TestResult) string {
	buf := new(strings.Builder)
	for _, f := range tc.Failures {
		fmt.Fprintf(buf, "%s:%d: %s\n", f.Filename, f.Line, f.CombinedText)
	}
	return buf.String()
}

func write(out io.Writer, suites JUnitTestSuites) error {
	doc, err := xml.MarshalIndent(suites, "", "\t")
	if err != nil {
		return err
	}
	_, err = out.Write([]byte(xml.Header))
	if err != nil {
		return err
	}
	_, err = out.Write(doc)
	return err
}
