// Package filewatcher runs tests when go files change.
package filewatcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"gotest.tools/gotestfail/log"
)

// Event is a request to run the tests of a package.
type Event struct {
	// PkgPath is the package to test, relative to the working directory.
	PkgPath string
	// Rerun is true when the event was requested from the terminal.
	Rerun bool

	// useLastPath is set by the terminal handler and replaced by the path
	// of the previous run before the event is handled.
	useLastPath bool
}

// Config for Watch.
type Config struct {
	// Dirs to watch. Each directory is watched recursively up to maxDepth.
	// A trailing /... is ignored. Defaults to the working directory.
	Dirs []string
	// Out receives the messages printed before each run.
	Out io.Writer
	// Clock used for the flood threshold. Defaults to the real clock.
	Clock clockwork.Clock
}

// Watch calls run each time a .go file is written or created in one of the
// directories, and when a run is requested from the terminal. Watch returns
// when ctx is done, or when run returns an error.
func Watch(ctx context.Context, cfg Config, run func(Event) error) error {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	toWatch := findAllDirs(cfg.Dirs, maxDepth)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close() // nolint: errcheck

	fmt.Fprintf(cfg.Out, "Watching %v directories. Use Ctrl-c to stop a run or exit.\n", len(toWatch))
	for _, dir := range toWatch {
		if err = watcher.Add(dir); err != nil {
			return err
		}
	}

	redo := newRedoHandler()
	go redo.run(ctx)

	h := &handler{last: cfg.Clock.Now(), clock: cfg.Clock, fn: run, out: cfg.Out}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-redo.Ch():
			if err := h.runTests(event); err != nil {
				return fmt.Errorf("failed to rerun tests for %v: %v", event.PkgPath, err)
			}
		case event := <-watcher.Events:
			log.Debugf("handling event %v", event.String())

			if handleDirCreated(watcher, event) {
				continue
			}

			if err := h.handleEvent(event); err != nil {
				return fmt.Errorf("failed to run tests for %v: %v", event.Name, err)
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("failed while watching files: %v", err)
		}
	}
}

const maxDepth = 7

var floodThreshold = 250 * time.Millisecond

func findAllDirs(dirs []string, depth int) []string {
	var output []string

	walker := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Warnf("failed to watch %v: %v", path, err)
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if isMaxDepth(path, depth) || exclude(path) {
			log.Debugf("Ignoring %v because of max depth or exclude list", path)
			return filepath.SkipDir
		}
		if noGoFiles(path) {
			log.Debugf("Ignoring %v because it has no .go files", path)
			return nil
		}
		output = append(output, path)
		return nil
	}

	if len(dirs) == 0 {
		dirs = []string{"."}
	}

	for _, dir := range dirs {
		dir = strings.TrimSuffix(dir, "/...")
		// nolint: errcheck // error is handled by walker func
		filepath.Walk(dir, walker)
	}
	return output
}

func isMaxDepth(path string, depth int) bool {
	return strings.Count(filepath.Clean(path), string(filepath.Separator)) >= depth
}

// return true if path is vendor, testdata, or starts with a dot
func exclude(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, ".") && len(base) > 1:
		return true
	case base == "vendor" || base == "testdata":
		return true
	}
	return false
}

func noGoFiles(path string) bool {
	entries, err := os.ReadDir(path)
	if err != nil {
		log.Warnf("failed to read directory %v: %v", path, err)
		return true
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".go") {
			return false
		}
	}
	return true
}

func handleDirCreated(watcher *fsnotify.Watcher, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) {
		return false
	}

	fileInfo, err := os.Stat(event.Name)
	if err != nil {
		log.Warnf("failed to stat %s: %s", event.Name, err)
		return false
	}

	if !fileInfo.IsDir() {
		return false
	}

	if err := watcher.Add(event.Name); err != nil {
		log.Warnf("failed to watch new directory %v: %v", event.Name, err)
	}
	return true
}

type handler struct {
	last     time.Time
	lastPath string
	clock    clockwork.Clock
	fn       func(Event) error
	out      io.Writer
}

func (h *handler) handleEvent(event fsnotify.Event) error {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return nil
	}

	if !strings.HasSuffix(event.Name, ".go") {
		return nil
	}

	if h.clock.Since(h.last) < floodThreshold {
		log.Debugf("skipping event received less than %v after the previous", floodThreshold)
		return nil
	}

	return h.runTests(Event{PkgPath: pkgPath(event.Name)})
}

// pkgPath returns the relative package path of the directory containing
// filename, in the form accepted by go test.
func pkgPath(filename string) string {
	dir := filepath.ToSlash(filepath.Dir(filename))
	if filepath.IsAbs(dir) || strings.HasPrefix(dir, ".") {
		return dir
	}
	return "./" + dir
}

func (h *handler) runTests(event Event) error {
	if event.useLastPath {
		if h.lastPath == "" {
			log.Debugf("no previous run to repeat")
			return nil
		}
		event.PkgPath = h.lastPath
	}

	fmt.Fprintf(h.out, "\nRunning tests in %v\n", event.PkgPath)
	if err := h.fn(event); err != nil {
		return err
	}
	h.last = h.clock.Now()
	h.lastPath = event.PkgPath
	return nil
}
