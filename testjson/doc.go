/*
Package testjson reads test2json output and reconstructs the result of each
test, including the location and message of every failure.

go test interleaves the output of parallel tests and indents the output of
sub-tests, so the events are first grouped by package and test, and then the
output of each test is split into failures at each file:line: prefix.

# Example

This example reads the test2json output from os.Stdin and prints the
location of each failure.

	results, err := testjson.ScanTestOutput(testjson.ScanConfig{Stdout: os.Stdin})
	if err != nil {
	    return fmt.Errorf("failed to scan testjson: %v", err)
	}
	for _, tc := range results {
	    for _, f := range tc.Failures {
	        fmt.Printf("%s:%d: %s\n", f.Filename, f.Line, f.ShortMessage())
	    }
	}
*/
package testjson // import "gotest.tools/gotestfail/testjson"
