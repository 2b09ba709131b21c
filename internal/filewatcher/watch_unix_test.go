//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package filewatcher

import (
	"context"
	"io"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	"gotest.tools/v3/fs"
)

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	dir := fs.NewDir(t, "watch", fs.WithFile("main.go", "package main\n"))

	r, w := io.Pipe()
	patchStdin(t, r)
	patchFloodThreshold(t, 0)

	chEvents := make(chan Event, 1)
	capture := func(event Event) error {
		chEvents <- event
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, Config{Dirs: []string{dir.Path()}, Out: io.Discard}, capture)
	}()

	t.Run("run all tests", func(t *testing.T) {
		_, err := w.Write([]byte("a"))
		assert.NilError(t, err)

		event := <-chEvents
		expected := Event{PkgPath: "./...", Rerun: true}
		assert.DeepEqual(t, event, expected, cmpEvent)
	})

	t.Run("run tests on file change", func(t *testing.T) {
		fs.Apply(t, dir, fs.WithFile("file.go", ""))

		event := <-chEvents
		expected := Event{PkgPath: dir.Path()}
		assert.DeepEqual(t, event, expected, cmpEvent)

		t.Run("and rerun", func(t *testing.T) {
			_, err := w.Write([]byte("r"))
			assert.NilError(t, err)

			event := <-chEvents
			expected := Event{PkgPath: dir.Path(), Rerun: true}
			assert.DeepEqual(t, event, expected, cmpEvent)
		})
	})

	cancel()
	_ = w.Close()
	select {
	case err := <-done:
		assert.NilError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after the context was cancelled")
	}
}

func patchStdin(t *testing.T, in io.Reader) {
	orig := stdin
	stdin = in
	t.Cleanup(func() {
		stdin = orig
	})
}

func patchFloodThreshold(t *testing.T, d time.Duration) {
	orig := floodThreshold
	floodThreshold = d
	t.Cleanup(func() {
		floodThreshold = orig
	})
}
