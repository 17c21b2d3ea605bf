/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package recorder implements the consumer that, instead of checking a
// traced script against a fixed set of expected steps, lets every command
// it observes run for real and records what happened as a fresh Step, so
// a test file's unfilled hole (or a brand new test file) can be completed
// from an actual run instead of written by hand.
package recorder

import (
	"fmt"

	"github.com/anonymouse64/scriptkeeper/internal/spec"
	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	"golang.org/x/sys/unix"
)

// Recorder observes every execve a traced script makes, lets it run
// unmodified, and turns each one into an exact-match Step once the
// process it started exits. It implements tracer.Mock.
type Recorder struct {
	unmockedCmds []spec.CommandMatcher
	pending      map[int]spec.Command
	steps        []spec.Step
}

// New returns an empty Recorder.
func New(unmockedCmds []spec.CommandMatcher) *Recorder {
	return &Recorder{unmockedCmds: unmockedCmds, pending: make(map[int]spec.Command)}
}

// Steps returns every Step recorded so far, in the order their processes
// exited.
func (r *Recorder) Steps() []spec.Step {
	return r.steps
}

// HandleExecveEnter implements tracer.Mock. Unlike the checker, it never
// redirects regs to a mock executable: the whole point of recording is to
// let the real program run and observe what it actually does.
func (r *Recorder) HandleExecveEnter(pid int, regs *unix.PtraceRegs) error {
	executable, err := tracee.PeekString(pid, uintptr(regs.Rdi))
	if err != nil {
		return fmt.Errorf("reading execve executable: %w", err)
	}
	args, err := tracee.PeekStringArray(pid, uintptr(regs.Rsi))
	if err != nil {
		return fmt.Errorf("reading execve arguments: %w", err)
	}
	cmd := spec.Command{Executable: executable, Arguments: args}

	if isUnmocked(r.unmockedCmds, cmd) {
		return nil
	}
	r.pending[pid] = cmd
	return nil
}

// HandleGetcwdExit implements tracer.Mock; recording never mocks getcwd.
func (r *Recorder) HandleGetcwdExit(pid int, regs *unix.PtraceRegs) error { return nil }

// HandleStatExit implements tracer.Mock; recording never mocks stat.
func (r *Recorder) HandleStatExit(pid int, sc tracee.Syscall, regs *unix.PtraceRegs) error {
	return nil
}

// HandleExited turns the pending command for pid, if one was recorded,
// into an exact-match Step with empty expected stdout and the process's
// real exit code, matching the shape a hand-written Step has.
func (r *Recorder) HandleExited(pid, exitCode int) {
	cmd, ok := r.pending[pid]
	if !ok {
		return
	}
	delete(r.pending, pid)
	r.steps = append(r.steps, spec.Step{
		Matcher:  spec.NewExactMatcher(cmd),
		Stdout:   []byte{},
		ExitCode: exitCode,
	})
}

func isUnmocked(unmockedCmds []spec.CommandMatcher, cmd spec.Command) bool {
	for _, m := range unmockedCmds {
		if m.Matches(cmd, nil) {
			return true
		}
	}
	return false
}
