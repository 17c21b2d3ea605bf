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

package recorder

import (
	"github.com/anonymouse64/scriptkeeper/internal/checker"
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	"golang.org/x/sys/unix"
)

// HoleRecorder replays a test's known steps exactly like a checker, and
// once those are exhausted, switches to recording every further execve
// for real: it is what a test file ending in the hole marker runs under,
// so the declared prefix is still checked while the undeclared suffix is
// captured from an actual run.
type HoleRecorder struct {
	checker  *checker.Checker
	recorder *Recorder
}

// NewHoleRecorder returns a HoleRecorder over a Checker already
// constructed for the test's known prefix and a fresh Recorder for
// whatever comes after the hole.
func NewHoleRecorder(chk *checker.Checker, unmockedCmds []spec.CommandMatcher) *HoleRecorder {
	return &HoleRecorder{checker: chk, recorder: New(unmockedCmds)}
}

// checkerHasNoMoreSteps reports whether the wrapped checker's declared
// steps have all been consumed, meaning any further execve belongs to the
// recorded suffix rather than the checked prefix.
func (h *HoleRecorder) checkerHasNoMoreSteps() bool {
	return h.checker.RemainingSteps() == 0
}

// HandleExecveEnter implements tracer.Mock.
func (h *HoleRecorder) HandleExecveEnter(pid int, regs *unix.PtraceRegs) error {
	if !h.checkerHasNoMoreSteps() {
		return h.checker.HandleExecveEnter(pid, regs)
	}
	return h.recorder.HandleExecveEnter(pid, regs)
}

// HandleGetcwdExit implements tracer.Mock.
func (h *HoleRecorder) HandleGetcwdExit(pid int, regs *unix.PtraceRegs) error {
	if !h.checkerHasNoMoreSteps() {
		return h.checker.HandleGetcwdExit(pid, regs)
	}
	return h.recorder.HandleGetcwdExit(pid, regs)
}

// HandleStatExit implements tracer.Mock.
func (h *HoleRecorder) HandleStatExit(pid int, sc tracee.Syscall, regs *unix.PtraceRegs) error {
	if !h.checkerHasNoMoreSteps() {
		return h.checker.HandleStatExit(pid, sc, regs)
	}
	return h.recorder.HandleStatExit(pid, sc, regs)
}

// HandleExited implements tracer.Mock, always forwarded to the recorder:
// the checker does not use it, and a process started during the checked
// prefix has no bearing on the recorded suffix's steps.
func (h *HoleRecorder) HandleExited(pid, exitCode int) {
	h.recorder.HandleExited(pid, exitCode)
}

// Finish completes the test: the checker's own exit-code/stderr checks
// are skipped (a hole recording has nothing fixed to check the tail
// against), the checker's verdict on the checked prefix is combined with
// the recorder's newly captured steps, and the resulting Test plus
// verdict are returned so the caller can decide whether to rewrite the
// test file.
func (h *HoleRecorder) Finish(exitCode int) (*spec.Test, spec.CheckerResult) {
	result := h.checker.Result()

	test := &spec.Test{
		Arguments:   h.checker.TestArguments(),
		Env:         h.checker.TestEnv(),
		MockedFiles: h.checker.TestMockedFiles(),
		ExitCode:    exitCode,
	}
	if cwd, ok := h.checker.TestCwd(); ok {
		test.Cwd = cwd
		test.HasCwd = true
	}
	test.Steps = append(test.Steps, h.checker.ConsumedSteps()...)
	test.Steps = append(test.Steps, h.recorder.Steps()...)

	return test, result
}
