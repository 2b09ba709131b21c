//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package filewatcher

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
	"gotest.tools/gotestfail/log"
)

// stdin is read for key presses which request a run.
var stdin io.Reader = os.Stdin

type redoHandler struct {
	ch chan Event
}

func newRedoHandler() *redoHandler {
	return &redoHandler{ch: make(chan Event)}
}

func (r *redoHandler) Ch() <-chan Event {
	return r.ch
}

func enableNonBlockingRead(fd int) (func(), error) {
	term, err := unix.IoctlGetTermios(fd, tcGet)
	if err != nil {
		return nil, err
	}

	state := *term
	reset := func() {
		if err := unix.IoctlSetTermios(fd, tcSet, &state); err != nil {
			log.Debugf("failed to reset fd %d: %v", fd, err)
		}
	}

	term.Lflag &^= unix.ECHO | unix.ICANON
	term.Cc[unix.VMIN] = 1
	term.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, tcSet, term); err != nil {
		reset()
		return nil, err
	}
	return reset, nil
}

// run reads single key presses from stdin. When stdin is a terminal it is
// put into raw mode so that a key does not need to be followed by enter.
func (r *redoHandler) run(ctx context.Context) {
	if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fd := int(f.Fd())
		reset, err := enableNonBlockingRead(fd)
		if err != nil {
			log.Debugf("failed to put terminal (fd %d) into raw mode: %v", fd, err)
			return
		}
		defer reset()
	}

	in := bufio.NewReader(stdin)
	for {
		if ctx.Err() != nil {
			return
		}

		char, err := in.ReadByte()
		if err != nil {
			log.Debugf("stopped reading input: %v", err)
			return
		}
		log.Debugf("received byte %v (%v)", char, string(char))

		var event Event
		switch char {
		case 'r':
			event = Event{useLastPath: true, Rerun: true}
		case 'a':
			event = Event{PkgPath: "./...", Rerun: true}
		default:
			continue
		}
		select {
		case r.ch <- event:
		case <-ctx.Done():
			return
		}
	}
}
