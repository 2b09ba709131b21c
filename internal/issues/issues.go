/*
Package issues keeps GitHub issues in sync with the failing tests of a
test run.

Each failing test gets one open issue with the FailureLabel label. The issue
is closed once the test passes again.
*/
package issues // import "gotest.tools/gotestfail/internal/issues"

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/github"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"gotest.tools/gotestfail/log"
	"gotest.tools/gotestfail/testjson"
)

// FailureLabel is added to every issue created by a Reporter.
const FailureLabel = "testFailure"

// failureTag prefixes the location of each failure in the issue body.
const failureTag = "@BotTestIssue"

// Reporter creates and closes issues in a single repository.
type Reporter struct {
	client *github.Client
	owner  string
	repo   string
}

// NewReporter returns a Reporter for owner/repo. When token is empty the
// client is unauthenticated, which is only useful for reading.
func NewReporter(ctx context.Context, token, owner, repo string) *Reporter {
	return &Reporter{client: newClient(ctx, token), owner: owner, repo: repo}
}

func newClient(ctx context.Context, token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts))
}

// Summary of the changes made by Sync.
type Summary struct {
	Created int
	// Updated is the number of open issues which were given a comment
	// listing new failure locations.
	Updated int
	Closed  int
}

// Sync creates an issue for each failed test in results which does not
// already have an open issue, and closes the open issue of any test in
// results which passed. When a test with an open issue fails at a location
// not listed in the issue, a comment with the new failures is added.
func (r *Reporter) Sync(ctx context.Context, results testjson.ResultSet) (Summary, error) {
	var summary Summary
	open, err := r.openIssues(ctx)
	if err != nil {
		return summary, err
	}

	for _, tc := range results {
		title := IssueTitle(tc)
		issue, known := open[title]
		switch {
		case tc.Failed() && !known:
			created, _, err := r.client.Issues.Create(ctx, r.owner, r.repo, newIssueRequest(tc))
			if err != nil {
				return summary, errors.Wrapf(err, "failed to create issue for %s", title)
			}
			log.Debugf("created issue #%d for %s", created.GetNumber(), title)
			open[title] = created
			summary.Created++

		case tc.Failed() && known:
			// TODO: also skip locations listed in earlier comments, which
			// are currently repeated on every run.
			added := newFailures(ParseFailureLocations(issue.GetBody()), tc)
			if len(added) == 0 {
				continue
			}
			comment := &github.IssueComment{Body: github.String(failuresBody(tc.Name, added))}
			_, _, err := r.client.Issues.CreateComment(ctx, r.owner, r.repo, issue.GetNumber(), comment)
			if err != nil {
				return summary, errors.Wrapf(err, "failed to comment on issue #%d", issue.GetNumber())
			}
			summary.Updated++

		case tc.Status == testjson.ActionPass && known:
			req := &github.IssueRequest{State: github.String("closed")}
			_, _, err := r.client.Issues.Edit(ctx, r.owner, r.repo, issue.GetNumber(), req)
			if err != nil {
				return summary, errors.Wrapf(err, "failed to close issue #%d", issue.GetNumber())
			}
			log.Debugf("closed issue #%d for %s", issue.GetNumber(), title)
			delete(open, title)
			summary.Closed++
		}
	}
	return summary, nil
}

// openIssues returns the open issues with FailureLabel, by title.
func (r *Reporter) openIssues(ctx context.Context) (map[string]*github.Issue, error) {
	issues := make(map[string]*github.Issue)
	opts := &github.IssueListByRepoOptions{
		State:       "open",
		Labels:      []string{FailureLabel},
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		list, resp, err := r.client.Issues.ListByRepo(ctx, r.owner, r.repo, opts)
		if err != nil {
			return nil, errors.Wrap(err, "failed to list issues")
		}
		for _, issue := range list {
			if issue.PullRequestLinks != nil || !hasLabel(issue.Labels, FailureLabel) {
				continue
			}
			issues[issue.GetTitle()] = issue
		}
		if resp.NextPage == 0 {
			return issues, nil
		}
		opts.Page = resp.NextPage
	}
}

func hasLabel(labels []github.Label, name string) bool {
	for _, label := range labels {
		if label.GetName() == name {
			return true
		}
	}
	return false
}

// IssueTitle returns the title of the issue for a test.
func IssueTitle(tc testjson.TestResult) string {
	return tc.Package + "." + tc.Name
}

func newIssueRequest(tc testjson.TestResult) *github.IssueRequest {
	return &github.IssueRequest{
		Title:  github.String(IssueTitle(tc)),
		Body:   github.String(issueBody(tc)),
		Labels: &[]string{FailureLabel},
	}
}

func issueBody(tc testjson.TestResult) string {
	if len(tc.Failures) == 0 {
		return fmt.Sprintf("Found failures in %s:\n\nThe test failed without reporting a location.\n", tc.Name)
	}
	return failuresBody(tc.Name, tc.Failures)
}

func failuresBody(name string, failures []testjson.LocatedFailure) string {
	buf := new(strings.Builder)
	fmt.Fprintf(buf, "Found failures in %s:\n", name)
	for _, f := range failures {
		fmt.Fprintf(buf, "\n%s %s\n```\n%s\n```\n", failureTag, location(f), f.CombinedText)
	}
	return buf.String()
}

func location(f testjson.LocatedFailure) string {
	return fmt.Sprintf("%s:%d", f.Filename, f.Line)
}

// newFailures returns the failures of tc at a location which is not in known.
func newFailures(known []string, tc testjson.TestResult) []testjson.LocatedFailure {
	seen := make(map[string]bool, len(known))
	for _, loc := range known {
		seen[loc] = true
	}
	var added []testjson.LocatedFailure
	for _, f := range tc.Failures {
		if !seen[location(f)] {
			added = append(added, f)
		}
	}
	return added
}

// ParseFailureLocations returns the file:line of each failure recorded in the
// body of an issue created by a Reporter.
func ParseFailureLocations(body string) []string {
	var locations []string
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, failureTag+" ") {
			locations = append(locations, strings.TrimPrefix(line, failureTag+" "))
		}
	}
	return locations
}
