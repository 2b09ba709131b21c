/*
Package runner runs an external command in the background and reports the
outcome to a callback exactly once.

The command inherits the environment of the current process, with any
overrides from Config.Env applied on top. Stdout and stderr are captured
into a single buffer.
*/
package runner // import "gotest.tools/gotestfail/internal/runner"

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"gotest.tools/gotestfail/log"
)

// Config for a Process.
type Config struct {
	// Args is the command and its arguments.
	Args []string
	// Dir is the working directory. The current directory is used when empty.
	Dir string
	// Env overrides variables from the environment of the current process.
	// A leading ~ in a value is expanded to the home directory.
	Env map[string]string
	// Timeout stops the process once it has been running this long. Zero
	// means no timeout.
	Timeout time.Duration
	// Clock used for the timeout. Defaults to the real clock.
	Clock clockwork.Clock
}

// Result of a process that ran to completion. A non-zero ExitCode is not an
// error.
type Result struct {
	Args     []string
	ExitCode int
	// Output is the combined stdout and stderr.
	Output []byte
}

// Reason describes why a process did not run to completion.
type Reason string

const (
	ReasonLaunch  Reason = "launch"
	ReasonTimeout Reason = "timeout"
	ReasonKilled  Reason = "killed"
	ReasonWait    Reason = "wait"
)

// Error is the error passed to the callback when a process fails to start,
// times out, is killed, or can not be waited on. Output contains anything
// the process wrote before it stopped.
type Error struct {
	Reason  Reason
	Args    []string
	Output  []byte
	Timeout time.Duration
	Err     error
}

func (e *Error) Error() string {
	cmd := strings.Join(e.Args, " ")
	switch e.Reason {
	case ReasonTimeout:
		return fmt.Sprintf("%s: timed out after %s", cmd, e.Timeout)
	case ReasonKilled:
		return fmt.Sprintf("%s: killed", cmd)
	}
	return fmt.Sprintf("%s: %s failed: %v", cmd, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause implements the causer interface from github.com/pkg/errors.
func (e *Error) Cause() error {
	return e.Err
}

// IsTimeout returns true if the process was stopped because it ran longer
// than the timeout.
func (e *Error) IsTimeout() bool {
	return e.Reason == ReasonTimeout
}

// Callback receives the outcome of a process. Exactly one of result and err
// is non-nil.
type Callback func(result *Result, err error)

// Process is a command which runs on its own goroutine. A Process can only be
// started once.
type Process struct {
	config   Config
	callback Callback
	clock    clockwork.Clock
	output   *syncBuffer
	done     chan struct{}

	mu      sync.Mutex
	started bool
	killed  bool
	// exited is set once the process has been reaped. The pid, and its
	// process group, may be reused after that point.
	exited bool
	cmd    *exec.Cmd

	result *Result
	err    error
}

// waitDelay bounds how long Wait blocks on the output pipes after the process
// has exited, when a grandchild outside the process group still holds them.
const waitDelay = 5 * time.Second

// New returns a Process which will run the command from config when it is
// started. callback may be nil.
func New(config Config, callback Callback) *Process {
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Process{
		config:   config,
		callback: callback,
		clock:    clock,
		output:   new(syncBuffer),
		done:     make(chan struct{}),
	}
}

// Run starts a process and waits for the outcome. The process is killed if
// ctx is cancelled before it finishes.
func Run(ctx context.Context, config Config) (*Result, error) {
	p := New(config, nil)
	if err := p.Start(); err != nil {
		return nil, err
	}
	select {
	case <-p.Done():
	case <-ctx.Done():
		p.Kill()
	}
	return p.Wait()
}

// Start the process in the background. Start does not block. Errors
// launching the command are delivered to the callback, the returned error is
// only for a Process that was already started.
func (p *Process) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("process already started")
	}
	p.started = true
	go p.run()
	return nil
}

// Wait blocks until the process has finished and the callback has returned.
func (p *Process) Wait() (*Result, error) {
	<-p.done
	return p.result, p.err
}

// Done returns a channel which is closed once the callback has returned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Output returns the output captured so far.
func (p *Process) Output() []byte {
	return p.output.Bytes()
}

// Kill stops the process and every process in its process group. Only the
// first call has any effect. Killing a process before it is started prevents
// it from being launched. Kill has no effect once the process has exited.
func (p *Process) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed || p.exited {
		return
	}
	p.killed = true
	if p.cmd == nil {
		return
	}
	log.Debugf("killing %v", p.config.Args)
	p.signalLocked(killSignal)
}

// signalLocked sends sig to the process group, unless the process was
// already reaped. p.mu must be held.
func (p *Process) signalLocked(sig syscall.Signal) {
	if p.exited || p.cmd == nil {
		return
	}
	if err := terminateProcess(p.cmd.Process, sig); err != nil {
		log.Debugf("failed to signal %v: %v", p.config.Args, err)
	}
}

// terminateProcess is a shim for testing.
var terminateProcess = terminate

func (p *Process) run() {
	defer close(p.done)
	p.result, p.err = p.execute()
	if p.callback != nil {
		p.callback(p.result, p.err)
	}
}

func (p *Process) execute() (*Result, error) {
	cmd, err := p.launch()
	if err != nil {
		return nil, err
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.exited = true
		p.mu.Unlock()
		waitErr <- err
	}()

	var timeout <-chan time.Time
	if p.config.Timeout > 0 {
		timer := p.clock.NewTimer(p.config.Timeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	select {
	case err := <-waitErr:
		return p.completed(cmd, err)
	case <-timeout:
		log.Debugf("timeout after %s, killing %v", p.config.Timeout, p.config.Args)
		p.mu.Lock()
		p.signalLocked(timeoutSignal)
		p.mu.Unlock()
		err := <-waitErr
		return nil, p.newError(ReasonTimeout, err)
	}
}

func (p *Process) launch() (*exec.Cmd, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return nil, p.newError(ReasonKilled, errors.New("killed before start"))
	}
	if len(p.config.Args) == 0 {
		return nil, p.newError(ReasonLaunch, errors.New("no command"))
	}

	cmd := exec.Command(p.config.Args[0], p.config.Args[1:]...)
	cmd.Dir = p.config.Dir
	cmd.Env = environ(p.config.Env)
	cmd.Stdout = p.output
	cmd.Stderr = p.output
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	log.Debugf("exec: %v", cmd.Args)
	if err := cmd.Start(); err != nil {
		return nil, p.newError(ReasonLaunch, err)
	}
	p.cmd = cmd
	return cmd, nil
}

func (p *Process) completed(cmd *exec.Cmd, err error) (*Result, error) {
	p.mu.Lock()
	killed := p.killed
	p.mu.Unlock()

	var exitErr *exec.ExitError
	switch {
	case err != nil && killed:
		return nil, p.newError(ReasonKilled, err)
	case err == nil:
	case errors.As(err, &exitErr):
	default:
		return nil, p.newError(ReasonWait, err)
	}
	return &Result{
		Args:     p.config.Args,
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   p.output.Bytes(),
	}, nil
}

func (p *Process) newError(reason Reason, err error) *Error {
	return &Error{
		Reason:  reason,
		Args:    p.config.Args,
		Output:  p.output.Bytes(),
		Timeout: p.config.Timeout,
		Err:     err,
	}
}

// environ returns the environment of the current process with overrides
// appended. exec.Cmd keeps the last value of any duplicate key.
func environ(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := homedir.Expand(overrides[key])
		if err != nil {
			log.Debugf("failed to expand %s=%s: %v", key, overrides[key], err)
			value = overrides[key]
		}
		env = append(env, key+"="+value)
	}
	return env
}

// syncBuffer is shared by stdout and stderr and read while the process runs.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}
