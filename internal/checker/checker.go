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

// Package checker implements the consumer that replays a Test against a
// traced script: every execve it observes is checked against the test's
// next expected step and redirected to a fabricated mock executable; every
// getcwd and stat-family syscall it observes is answered from the test's
// declared cwd and mocked files.
package checker

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/anonymouse64/scriptkeeper/internal/mockexec"
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	"golang.org/x/sys/unix"
)

// statModeOffset is the byte offset of st_mode within struct stat, read
// off golang.org/x/sys/unix's own layout rather than hand-maintained, so
// it always matches whatever struct shape that package was built against.
var statModeOffset = uintptr(unsafe.Offsetof(unix.Stat_t{}.Mode))

// Checker replays one Test against a traced script. It implements
// tracer.Mock.
type Checker struct {
	test     *spec.Test
	selfPath string
	mockDir  string
	result   spec.CheckerResult

	tempExecutables []*mockexec.ShortTempFile
	consumedSteps   []spec.Step
}

// New returns a Checker for test, fabricating mock executables under
// mockDir and pointing their hash-bang line at selfPath.
func New(test *spec.Test, selfPath, mockDir string) *Checker {
	return &Checker{test: test, selfPath: selfPath, mockDir: mockDir}
}

// Close removes every mock executable this Checker fabricated over the
// course of a run. Mocks are kept alive until the whole test finishes
// (not just the step that created them) because a script may invoke the
// same mocked command more than once, or pass its path to a later step.
func (c *Checker) Close() error {
	var firstErr error
	for _, f := range c.tempExecutables {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Result returns the outcome accumulated so far.
func (c *Checker) Result() spec.CheckerResult {
	return c.result
}

// RemainingSteps returns how many of the test's declared steps have not
// yet been consumed by an observed execve.
func (c *Checker) RemainingSteps() int {
	return len(c.test.Steps)
}

// ConsumedSteps returns every step this Checker has already popped off
// the test (matched or not), in the order they were consumed. Used by
// HoleRecorder to reassemble a full Test after hole-filling.
func (c *Checker) ConsumedSteps() []spec.Step {
	return c.consumedSteps
}

// TestArguments returns the underlying test's declared arguments.
func (c *Checker) TestArguments() []string { return c.test.Arguments }

// TestEnv returns the underlying test's declared environment.
func (c *Checker) TestEnv() map[string]string { return c.test.Env }

// TestMockedFiles returns the underlying test's declared mocked files.
func (c *Checker) TestMockedFiles() []string { return c.test.MockedFiles }

// TestCwd returns the underlying test's declared working directory, if
// any.
func (c *Checker) TestCwd() (string, bool) { return c.test.Cwd, c.test.HasCwd }

// HandleExecveEnter implements tracer.Mock.
func (c *Checker) HandleExecveEnter(pid int, regs *unix.PtraceRegs) error {
	executable, err := tracee.PeekString(pid, uintptr(regs.Rdi))
	if err != nil {
		return fmt.Errorf("reading execve executable: %w", err)
	}
	args, err := tracee.PeekStringArray(pid, uintptr(regs.Rsi))
	if err != nil {
		return fmt.Errorf("reading execve arguments: %w", err)
	}
	received := spec.Command{Executable: executable, Arguments: args}

	if c.test.IsUnmocked(received) {
		return nil
	}

	mockPath, err := c.handleStep(received)
	if err != nil {
		return err
	}
	return tracee.PokeSingleWordString(pid, uintptr(regs.Rdi), mockPath)
}

// handleStep pops the test's next expected step, compares it against
// received, registers a failure on the first mismatch this Checker sees,
// and fabricates the mock executable the tracee's execve is redirected to.
// A script that runs more commands than the test declares, or one whose
// command doesn't match what was expected, is still allowed to keep
// running (stdout empty, exit code 0) so the rest of the run can surface
// whatever else is wrong, instead of aborting on the first divergence.
func (c *Checker) handleStep(received spec.Command) (string, error) {
	stdout := []byte{}
	exitcode := 0

	step, ok := c.test.PopStep()
	switch {
	case !ok:
		c.registerStepError("<script termination>", spec.FormatCommand(received))
	case !step.Matcher.Matches(received, c.test.MockedExecutableNames()):
		c.registerStepError(step.Matcher.Format(), spec.FormatCommand(received))
	default:
		stdout = step.Stdout
		exitcode = step.ExitCode
	}
	if ok {
		c.consumedSteps = append(c.consumedSteps, step)
	}

	mock, err := mockexec.Create(c.mockDir, c.selfPath, mockexec.Config{Stdout: stdout, ExitCode: exitcode})
	if err != nil {
		return "", fmt.Errorf("fabricating mock executable: %w", err)
	}
	c.tempExecutables = append(c.tempExecutables, mock)
	return mock.Path, nil
}

// HandleGetcwdExit implements tracer.Mock.
func (c *Checker) HandleGetcwdExit(pid int, regs *unix.PtraceRegs) error {
	if !c.test.HasCwd {
		return nil
	}

	bufAddr := uintptr(regs.Rdi)
	bufSize := int(regs.Rsi)
	needed := len(c.test.Cwd) + 1
	if needed > bufSize {
		return fmt.Errorf("mocked cwd %q does not fit in the %d-byte buffer getcwd was called with", c.test.Cwd, bufSize)
	}

	if err := tracee.PokeString(pid, bufAddr, c.test.Cwd, bufSize); err != nil {
		return fmt.Errorf("poking mocked cwd: %w", err)
	}
	regs.Rax = uint64(needed)
	if err := unix.PtraceSetRegs(pid, regs); err != nil {
		return fmt.Errorf("ptrace(PTRACE_SETREGS, %d): %w", pid, err)
	}
	return nil
}

// HandleStatExit implements tracer.Mock.
func (c *Checker) HandleStatExit(pid int, sc tracee.Syscall, regs *unix.PtraceRegs) error {
	pathAddr, bufAddr := statArgAddrs(sc, regs)

	path, err := tracee.PeekString(pid, pathAddr)
	if err != nil {
		return fmt.Errorf("reading stat path: %w", err)
	}

	if !c.isMockedFile(path) {
		return nil
	}

	mode := uint32(0644 | unix.S_IFREG)
	if strings.HasSuffix(path, "/") {
		mode = uint32(0755 | unix.S_IFDIR)
	}

	if err := tracee.PokeFourBytes(pid, bufAddr+statModeOffset, mode); err != nil {
		return fmt.Errorf("poking mocked st_mode: %w", err)
	}
	regs.Rax = 0
	if err := unix.PtraceSetRegs(pid, regs); err != nil {
		return fmt.Errorf("ptrace(PTRACE_SETREGS, %d): %w", pid, err)
	}
	return nil
}

// HandleExited implements tracer.Mock. The checker draws its pass/fail
// verdict entirely from steps and the root process's own exit code
// (handled in HandleEnd), so a non-root process exiting is not otherwise
// interesting to it.
func (c *Checker) HandleExited(pid, exitCode int) {}

// statArgAddrs returns the address of the path argument and the address
// of the struct stat output buffer for a stat-family syscall, which are
// carried in different registers for newfstatat (path, fd-relative) than
// for plain stat/lstat.
func statArgAddrs(sc tracee.Syscall, regs *unix.PtraceRegs) (pathAddr, bufAddr uintptr) {
	if sc == tracee.Fstatat {
		return uintptr(regs.Rsi), uintptr(regs.Rdx)
	}
	return uintptr(regs.Rdi), uintptr(regs.Rsi)
}

func (c *Checker) isMockedFile(path string) bool {
	for _, m := range c.test.MockedFiles {
		if m == path {
			return true
		}
	}
	return false
}

// registerStepError records expected/received as the Checker's result,
// unless an earlier call already registered a failure (first failure
// wins: everything after the first divergence is noise once the script
// has already gone off script).
func (c *Checker) registerStepError(expected, received string) {
	c.result = c.result.Fail(fmt.Sprintf("  expected: %s\n  received: %s\n", expected, received))
}

// RegisterRawError records an arbitrary failure message (used for the
// end-of-run stderr/exit-code checks, which are not about a specific
// step), subject to the same first-failure-wins rule as registerStepError.
func (c *Checker) RegisterRawError(message string) {
	c.result = c.result.Fail(message)
}

// HandleEnd finalizes the Checker's result once the tracee has exited:
// unconsumed steps mean the script terminated early, a mismatched exit
// code or stderr are both recorded (subject to first-failure-wins), and
// the final Result is returned.
func (c *Checker) HandleEnd(exitCode int, stderr []byte, stderrCaptured bool) spec.CheckerResult {
	if len(c.test.Steps) > 0 {
		next := c.test.Steps[0]
		c.registerStepError(next.Matcher.Format(), "<script terminated>")
	}

	if exitCode != c.test.ExitCode {
		c.RegisterRawError(fmt.Sprintf("  expected: %d\n  received: %d\n", c.test.ExitCode, exitCode))
	}

	if c.test.HasStderr {
		if !stderrCaptured {
			panic("scriptkeeper bug: stderr expected, but not captured")
		}
		if string(stderr) != string(c.test.Stderr) {
			c.RegisterRawError(fmt.Sprintf("  expected output to stderr: %q\n  received output to stderr: %q\n", c.test.Stderr, stderr))
		}
	}

	return c.result
}
