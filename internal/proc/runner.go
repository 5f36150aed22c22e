// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package proc runs platform services and hooks as child processes.
//
// Binaries shipped by the platform live under the zone's native system
// root (normally /native) rather than the guest's own root, so every path
// is resolved through the runner's NativeRoot prefix first.
package proc

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"grimm.is/zoneinit/internal/errors"
	"grimm.is/zoneinit/internal/logging"
)

// nativeRoot is where the platform mounts its own system root inside the
// zone.
const nativeRoot = "/native"

// stderrLimit bounds how much child stderr is kept for error reporting.
const stderrLimit = 512

// Runner launches child processes and waits for them synchronously.
type Runner struct {
	// NativeRoot is prepended to every binary path. Empty means the
	// platform did not mount a native root.
	NativeRoot string

	Log *logging.Logger
}

// NewRunner returns a Runner with the detected native root.
func NewRunner(log *logging.Logger) *Runner {
	return &Runner{
		NativeRoot: DetectNativeRoot(),
		Log:        log,
	}
}

// DetectNativeRoot reports the native system root prefix, or "" when the
// platform did not provide one.
func DetectNativeRoot() string {
	if st, err := os.Stat(nativeRoot); err == nil && st.IsDir() {
		return nativeRoot
	}
	return ""
}

// Resolve prepends the native root prefix to an absolute binary path.
func (r *Runner) Resolve(path string) string {
	return r.NativeRoot + path
}

// Run executes a platform service and waits for it to exit cleanly.
// The child gets argv[0] = name and the given (minimal) environment.
// Any failure, including death by signal, is an error the caller is
// expected to treat as fatal.
func (r *Runner) Run(name, path string, env []string) error {
	cmd := exec.Command(r.Resolve(path))
	cmd.Args = []string{name}
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stdout

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "execve(%s) failed", r.Resolve(path))
	}
	return classifyWait(name, cmd)
}

// Exec runs a native administration command with arguments and waits
// for it. Child stderr is folded into the returned error on failure.
func (r *Runner) Exec(path string, args ...string) error {
	full := r.Resolve(path)
	cmd := exec.Command(full, args...)
	cmd.Env = []string{}

	errbuf := &boundedBuffer{limit: stderrLimit}
	cmd.Stdout = io.Discard
	cmd.Stderr = errbuf

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "execve(%s) failed", full)
	}
	if err := classifyWait(filepath.Base(path), cmd); err != nil {
		if msg := strings.TrimSpace(errbuf.String()); msg != "" {
			return errors.Wrapf(err, errors.KindInternal, "%s", msg)
		}
		return err
	}
	return nil
}

// RunHook executes an optional user-supplied hook with no arguments and an
// empty environment. A hook that is absent or not executable (checked with
// the real-UID access test) is silently skipped. EACCES on exec is treated
// as success: running as root, access(2) is less strict than exec, and
// busted permissions on the hook should not abort the zone.
func (r *Runner) RunHook(path string) error {
	cmd := r.Resolve(path)
	if unix.Access(cmd, unix.X_OK) != nil {
		return nil
	}

	c := exec.Command(cmd)
	c.Args = []string{cmd}
	c.Env = []string{}
	// Wire stderr to the same place as stdout, in case the hook wishes to
	// use it.
	c.Stdout = os.Stdout
	c.Stderr = os.Stdout

	if err := c.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil
		}
		return errors.Wrapf(err, errors.KindInternal, "execve(%s) failed", cmd)
	}
	return classifyWait(cmd, c)
}

// RunLines executes a helper binary, streaming each line of its standard
// output through fn. Child stderr is captured into a bounded buffer for the
// error message. A callback error stops line processing and is returned
// after the child is reaped.
func (r *Runner) RunLines(name, path string, fn func(line string) error) error {
	cmd := exec.Command(r.Resolve(path))
	cmd.Args = []string{name}
	cmd.Env = []string{}

	errbuf := &boundedBuffer{limit: stderrLimit}
	cmd.Stderr = errbuf

	out, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "execve(%s) failed", r.Resolve(path))
	}

	var cbErr error
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		if cbErr = fn(sc.Text()); cbErr != nil {
			break
		}
	}
	// Drain whatever is left so the child can finish writing.
	io.Copy(io.Discard, out)

	waitErr := classifyWait(name, cmd)
	if cbErr != nil {
		return cbErr
	}
	if waitErr != nil {
		return errors.Wrapf(waitErr, errors.KindInternal, "failed to run %q: %s",
			r.Resolve(path), errbuf.String())
	}
	return sc.Err()
}

// classifyWait reaps the child and classifies its exit the way the zone
// boot wants: clean exit is success, everything else carries the pid and
// the reason.
func classifyWait(name string, cmd *exec.Cmd) error {
	err := cmd.Wait()
	if err == nil {
		return nil
	}

	pid := 0
	if cmd.Process != nil {
		pid = cmd.Process.Pid
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return errors.Errorf(errors.KindInternal, "%s[%d] died on signal: %d",
					name, pid, ws.Signal())
			}
			return errors.Errorf(errors.KindInternal, "%s[%d] exited: %d",
				name, pid, ws.ExitStatus())
		}
		return errors.Errorf(errors.KindInternal, "%s[%d] failed in unknown way", name, pid)
	}
	return errors.Wrapf(err, errors.KindInternal, "%s[%d] wait failed", name, pid)
}

// boundedBuffer keeps the first limit bytes written and drops the rest.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
