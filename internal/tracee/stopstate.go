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

package tracee

import "fmt"

// SyscallStop says whether a PTRACE_SYSCALL stop is the entry half or the
// exit half of a syscall. The kernel itself does not label which of the two
// a given stop is; StopTracker derives it by keeping track of the last
// syscall seen entering on each pid.
type SyscallStop int

const (
	// Enter is the first of a syscall's two stops.
	Enter SyscallStop = iota
	// Exit is the second of a syscall's two stops.
	Exit
)

func (s SyscallStop) String() string {
	if s == Enter {
		return "enter"
	}
	return "exit"
}

// StopTracker tells enter-stops from exit-stops by remembering, per pid,
// the syscall that pid last entered. It is adapted from the pid-to-state
// map idiom used elsewhere in this codebase for per-process bookkeeping
// across a stream of wait() events, specialized here to the two-stops-per-
// syscall shape ptrace produces.
type StopTracker struct {
	entered map[int]Syscall
}

// NewStopTracker returns an empty tracker.
func NewStopTracker() *StopTracker {
	return &StopTracker{entered: make(map[int]Syscall)}
}

// Advance records a syscall-stop for pid and returns whether it is the
// entry or the exit half. If pid has no recorded entry, this stop is an
// Enter and the syscall is recorded. If pid has a recorded entry matching
// syscall, this stop is the matching Exit and the recorded entry is
// cleared. If pid has a recorded entry that does NOT match syscall, the
// kernel has delivered stops out of the strict alternation this tracker
// assumes, and that is a bug in the tracer rather than something a caller
// can recover from.
func (t *StopTracker) Advance(pid int, syscall Syscall) (SyscallStop, error) {
	entered, ok := t.entered[pid]
	if !ok {
		t.entered[pid] = syscall
		return Enter, nil
	}
	if entered != syscall {
		return Enter, fmt.Errorf(
			"update_syscall_state: exiting with the wrong syscall: entered %s, exiting %s", entered, syscall)
	}
	delete(t.entered, pid)
	return Exit, nil
}

// Forget drops any recorded entry-stop for pid, used when a tracee exits or
// is killed without producing the matching exit-stop.
func (t *StopTracker) Forget(pid int) {
	delete(t.entered, pid)
}
