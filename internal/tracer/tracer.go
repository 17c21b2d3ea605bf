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

package tracer

import (
	"fmt"

	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	"golang.org/x/sys/unix"
)

// syscallStopSignal is the signal value a syscall-stop is reported under
// once PTRACE_O_TRACESYSGOOD is set: ordinary SIGTRAP with the high bit
// (0x80) set, distinguishing it from a signal-delivery-stop reporting a
// real SIGTRAP.
const syscallStopSignal = unix.SIGTRAP | 0x80

// Mock is the interface a consumer (the checker or the recorder) gives
// the tracer loop: it gets called at exactly the stops this design cares
// about and is left alone for everything else, which the loop continues
// through unexamined.
type Mock interface {
	// HandleExecveEnter is called at the syscall-enter stop of an execve.
	// Implementations read the requested executable/arguments out of the
	// tracee via the tracee package and may mutate regs (and poke the
	// tracee's memory) to redirect the call to a mock executable.
	HandleExecveEnter(pid int, regs *unix.PtraceRegs) error

	// HandleGetcwdExit is called at the syscall-exit stop of a getcwd.
	// Implementations may overwrite the buffer getcwd wrote and the
	// return value in regs to report a mocked working directory.
	HandleGetcwdExit(pid int, regs *unix.PtraceRegs) error

	// HandleStatExit is called at the syscall-exit stop of a stat,
	// lstat, or newfstatat (sc distinguishes which). Implementations may
	// patch the stat buffer's st_mode and the return value in regs to
	// report a mocked file as present.
	HandleStatExit(pid int, sc tracee.Syscall, regs *unix.PtraceRegs) error

	// HandleExited is called whenever any traced process (not just the
	// root) exits, after the loop forgets its stop-tracking state. The
	// checker ignores this; the recorder uses it to turn an unmocked
	// process's real run into a recorded Step.
	HandleExited(pid, exitCode int)
}

// Tracer drives the wait/dispatch/continue loop for a root Tracee and
// every descendant ptrace hands it via PTRACE_O_TRACEFORK et al.
type Tracer struct {
	rootPid int
	tracker *tracee.StopTracker
}

// New returns a Tracer for root.
func New(root *Tracee) *Tracer {
	return &Tracer{rootPid: root.Pid, tracker: tracee.NewStopTracker()}
}

// Run drives the tracee to completion, dispatching every execve/getcwd/stat
// syscall stop to mock, and returns the root process's exit code once it
// terminates.
func (t *Tracer) Run(mock Mock) (exitCode int, err error) {
	if err := unix.PtraceSyscall(t.rootPid, 0); err != nil {
		return 0, fmt.Errorf("ptrace(PTRACE_SYSCALL, %d): %w", t.rootPid, err)
	}

	for {
		var ws unix.WaitStatus
		pid, waitErr := unix.Wait4(-1, &ws, 0, nil)
		if waitErr != nil {
			if waitErr == unix.ECHILD {
				return 0, fmt.Errorf("tracer: all tracees exited without the root pid %d reporting an exit status", t.rootPid)
			}
			return 0, fmt.Errorf("wait4: %w", waitErr)
		}

		switch {
		case ws.Exited():
			t.tracker.Forget(pid)
			mock.HandleExited(pid, ws.ExitStatus())
			if pid == t.rootPid {
				return ws.ExitStatus(), nil
			}
			continue

		case ws.Signaled():
			t.tracker.Forget(pid)
			if pid == t.rootPid {
				return 0, fmt.Errorf("tracee %d killed by signal %s", pid, ws.Signal())
			}
			continue

		case ws.Stopped():
			if err := t.handleStop(pid, ws, mock); err != nil {
				return 0, err
			}

		default:
			// Any other status (PTRACE_EVENT stops are Stopped() and go
			// through handleStop) is resumed without inspection.
			if err := unix.PtraceSyscall(pid, 0); err != nil {
				return 0, fmt.Errorf("ptrace(PTRACE_SYSCALL, %d): %w", pid, err)
			}
		}
	}
}

func (t *Tracer) handleStop(pid int, ws unix.WaitStatus, mock Mock) error {
	sig := ws.StopSignal()

	// A freshly PTRACE_O_TRACEFORK'd/VFORK'd/CLONE'd child reports its
	// own initial stop as a plain SIGSTOP, not a syscall-stop; it just
	// needs to be resumed into the same syscall-stop stream as everything
	// else.
	if sig != syscallStopSignal {
		if err := unix.PtraceSyscall(pid, 0); err != nil {
			return fmt.Errorf("ptrace(PTRACE_SYSCALL, %d): %w", pid, err)
		}
		return nil
	}

	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return fmt.Errorf("ptrace(PTRACE_GETREGS, %d): %w", pid, err)
	}

	sc := tracee.Classify(&regs)
	stop, err := t.tracker.Advance(pid, sc)
	if err != nil {
		return err
	}

	switch {
	case sc == tracee.Execve && stop == tracee.Enter:
		if err := mock.HandleExecveEnter(pid, &regs); err != nil {
			return err
		}
		// The entry stays recorded: under PTRACE_SYSCALL an execve reports
		// an exit-stop whether it succeeds (after the PTRACE_EVENT_EXEC
		// stop, in the new image) or fails, and that exit-stop is what
		// clears it.

	case sc == tracee.Getcwd && stop == tracee.Exit:
		if err := mock.HandleGetcwdExit(pid, &regs); err != nil {
			return err
		}

	case tracee.IsStatFamily(sc) && stop == tracee.Exit:
		if err := mock.HandleStatExit(pid, sc, &regs); err != nil {
			return err
		}
	}

	if err := unix.PtraceSyscall(pid, 0); err != nil {
		return fmt.Errorf("ptrace(PTRACE_SYSCALL, %d): %w", pid, err)
	}
	return nil
}
