package testjson

// TestKey identifies a single test within a package.
type TestKey struct {
	Package string
	Test    string
}

// EventGroups is the set of TestEvents for every test in a test2json stream,
// grouped by package and then by test. Packages, tests within a package, and
// events within a test, are all kept in the order they first appeared.
type EventGroups struct {
	packages []string
	tests    map[string][]string
	events   map[TestKey][]TestEvent
}

func newEventGroups() *EventGroups {
	return &EventGroups{
		tests:  make(map[string][]string),
		events: make(map[TestKey][]TestEvent),
	}
}

// GroupEvents partitions events by package and test name in a single pass.
// Events without both a Package and a Test are package level output and are
// dropped.
func GroupEvents(events []TestEvent) *EventGroups {
	g := newEventGroups()
	for _, event := range events {
		g.add(event)
	}
	return g
}

func (g *EventGroups) add(event TestEvent) {
	if event.Package == "" || event.Test == "" {
		return
	}
	key := TestKey{Package: event.Package, Test: event.Test}
	if _, ok := g.tests[key.Package]; !ok {
		g.packages = append(g.packages, key.Package)
	}
	if _, ok := g.events[key]; !ok {
		g.tests[key.Package] = append(g.tests[key.Package], key.Test)
	}
	g.events[key] = append(g.events[key], event)
}

// Packages returns the package names in the order they were first seen.
func (g *EventGroups) Packages() []string {
	return append([]string(nil), g.packages...)
}

// Tests returns the names of the tests in pkg in the order they were first
// seen.
func (g *EventGroups) Tests(pkg string) []string {
	return append([]string(nil), g.tests[pkg]...)
}

// Keys returns the key of every group, packages first, then tests.
func (g *EventGroups) Keys() []TestKey {
	keys := make([]TestKey, 0, len(g.events))
	for _, pkg := range g.packages {
		for _, test := range g.tests[pkg] {
			keys = append(keys, TestKey{Package: pkg, Test: test})
		}
	}
	return keys
}

// Events returns a copy of the events for the test identified by key.
func (g *EventGroups) Events(key TestKey) []TestEvent {
	return append([]TestEvent(nil), g.events[key]...)
}

// Len returns the number of tests.
func (g *EventGroups) Len() int {
	return len(g.events)
}

// FilterByAction returns a new EventGroups which contains only the tests with
// at least one event with the action.
func (g *EventGroups) FilterByAction(action Action) *EventGroups {
	filtered := newEventGroups()
	for _, key := range g.Keys() {
		if !hasAction(g.events[key], action) {
			continue
		}
		for _, event := range g.events[key] {
			filtered.add(event)
		}
	}
	return filtered
}

func hasAction(events []TestEvent, action Action) bool {
	for _, event := range events {
		if event.Action == action {
			return true
		}
	}
	return false
}
