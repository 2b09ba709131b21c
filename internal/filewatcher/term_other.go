//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package filewatcher

import "context"

type redoHandler struct {
	ch chan Event
}

func newRedoHandler() *redoHandler {
	return &redoHandler{ch: make(chan Event)}
}

func (r *redoHandler) Ch() <-chan Event {
	return r.ch
}

func (r *redoHandler) run(context.Context) {}
