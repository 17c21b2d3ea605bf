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
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// ptraceOptions are set on the tracee immediately after the initial
// exec-stop: follow forks, vforks and clones into their own trace (a
// traced script that spawns a subshell must still have every command it
// runs observed), and distinguish a syscall-stop from a plain
// signal-delivery-stop by OR-ing 0x80 into SIGTRAP, matching what this
// codebase's StopTracker and dispatch loop expect to see.
const ptraceOptions = unix.PTRACE_O_TRACESYSGOOD |
	unix.PTRACE_O_TRACEFORK |
	unix.PTRACE_O_TRACEVFORK |
	unix.PTRACE_O_TRACECLONE |
	unix.PTRACE_O_TRACEEXEC

// Tracee is the root process of a trace: the script (or its interpreter)
// started under ptrace, plus every descendant ptraceOptions causes to be
// traced automatically.
type Tracee struct {
	Pid int
}

// Start forks and execve's program with argv and env in dir, stopped
// immediately under ptrace, with stdout and stdin inherited from this
// process and stderr redirected into redirector.
//
// Go's os.StartProcess already runs the child side of the fork/exec
// across an internal pipe and reports a child-side failure (including the
// PTRACE_TRACEME the runtime performs before the exec when
// SysProcAttr.Ptrace is set) as the error StartProcess itself returns, in
// preference to any error the parent could independently observe after
// the fact. That is exactly the "a child-side failure overrides a
// parent-side failure" guarantee this supervisor needs, given to us by
// the standard library instead of needing a hand-rolled scratch-file
// handoff for it.
func Start(program string, argv []string, env []string, dir string, redirector *Redirector) (*Tracee, error) {
	attr := &os.ProcAttr{
		Dir:   dir,
		Env:   env,
		Files: []*os.File{os.Stdin, os.Stdout, redirector.ChildFile()},
		Sys:   &syscall.SysProcAttr{Ptrace: true},
	}

	proc, err := os.StartProcess(program, argv, attr)
	if err != nil {
		return nil, fmt.Errorf("%s", FormatExecveError(program, err))
	}
	redirector.Start()

	var ws unix.WaitStatus
	if _, err := unix.Wait4(proc.Pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("waiting for initial trace-stop of pid %d: %w", proc.Pid, err)
	}
	if !ws.Stopped() {
		return nil, fmt.Errorf("pid %d did not stop as expected after fork (status %v)", proc.Pid, ws)
	}

	if err := unix.PtraceSetOptions(proc.Pid, ptraceOptions); err != nil {
		return nil, fmt.Errorf("ptrace(PTRACE_SETOPTIONS, %d): %w", proc.Pid, err)
	}

	return &Tracee{Pid: proc.Pid}, nil
}
