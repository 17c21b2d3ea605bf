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

// Package tracee provides primitives for observing and mutating a ptrace'd
// process: reading its syscall number, its register file, and the bytes of
// its address space.
package tracee

import (
	"golang.org/x/sys/unix"
)

// Syscall is the small, fixed set of syscalls this tracer inspects. Anything
// else collapses to Unknown so the dispatcher can ignore it cheaply.
type Syscall int

// The fixed set of syscalls the tracer classifies, per the amd64 syscall
// table. Unknown stands for every other number; RawNumber recovers the raw
// value for diagnostics.
const (
	Unknown Syscall = iota
	Execve
	Getcwd
	Stat
	Lstat
	Fstatat
	Openat
	Read
	Write
	Close
	Fstat
	Dup2
	Clone
	Fork
	Vfork
	Exit
	ExitGroup
)

var syscallNumbers = map[int64]Syscall{
	unix.SYS_EXECVE:       Execve,
	unix.SYS_GETCWD:       Getcwd,
	unix.SYS_STAT:         Stat,
	unix.SYS_LSTAT:        Lstat,
	unix.SYS_NEWFSTATAT:   Fstatat,
	unix.SYS_OPENAT:       Openat,
	unix.SYS_READ:         Read,
	unix.SYS_WRITE:        Write,
	unix.SYS_CLOSE:        Close,
	unix.SYS_FSTAT:        Fstat,
	unix.SYS_DUP2:         Dup2,
	unix.SYS_CLONE:        Clone,
	unix.SYS_FORK:         Fork,
	unix.SYS_VFORK:        Vfork,
	unix.SYS_EXIT:         Exit,
	unix.SYS_EXIT_GROUP:   ExitGroup,
}

// Classify maps the raw "original" syscall-number register (orig_rax on
// amd64) read at a syscall-stop into a Syscall. Numbers outside the fixed
// set classify as Unknown; the raw number is preserved via RawNumber.
func Classify(regs *unix.PtraceRegs) Syscall {
	if s, ok := syscallNumbers[int64(regs.Orig_rax)]; ok {
		return s
	}
	return Unknown
}

// RawNumber returns the orig_rax value the classification was computed
// from, for diagnostics when Classify returns Unknown.
func RawNumber(regs *unix.PtraceRegs) int64 {
	return int64(regs.Orig_rax)
}

func (s Syscall) String() string {
	switch s {
	case Execve:
		return "execve"
	case Getcwd:
		return "getcwd"
	case Stat:
		return "stat"
	case Lstat:
		return "lstat"
	case Fstatat:
		return "newfstatat"
	case Openat:
		return "openat"
	case Read:
		return "read"
	case Write:
		return "write"
	case Close:
		return "close"
	case Fstat:
		return "fstat"
	case Dup2:
		return "dup2"
	case Clone:
		return "clone"
	case Fork:
		return "fork"
	case Vfork:
		return "vfork"
	case Exit:
		return "exit"
	case ExitGroup:
		return "exit_group"
	default:
		return "unknown"
	}
}

// IsStatFamily reports whether s is one of the stat-like syscalls the
// checker inspects on exit to mock file existence (§4.8 stat/lstat/fstatat).
func IsStatFamily(s Syscall) bool {
	switch s {
	case Stat, Lstat, Fstatat:
		return true
	default:
		return false
	}
}
