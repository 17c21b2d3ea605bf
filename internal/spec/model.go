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

// Package spec implements the declarative test-spec format: the Command
// and CommandMatcher data model, the YAML-facing Test/Step types, the
// argument tokenizer and the executable-path canonicalizer that decides
// when two commands name "the same" executable.
package spec

import "fmt"

// Command is a parsed invocation: the executable name or path, plus its
// argument vector (argv[1:] — the executable itself is argv[0] and is
// tracked separately).
type Command struct {
	Executable string
	Arguments  []string
}

// Step is one entry in a Test's ordered list of expected commands: what is
// expected to run (Matcher) and what the mock should hand back to the
// script in its place (Stdout, ExitCode).
type Step struct {
	Matcher  CommandMatcher
	Stdout   []byte
	ExitCode int
}

// Test is a fully parsed test case: the ordered steps the script under test
// is expected to run, the arguments/environment/cwd it is invoked with, and
// the declared files the stat/lstat/fstatat mock should report as present.
type Test struct {
	Steps         []Step
	Arguments     []string
	Env           map[string]string
	Cwd           string
	HasCwd        bool
	MockedFiles   []string
	ExitCode      int
	Stderr        []byte
	HasStderr     bool
	Interpreter   string
	HasEndOfTest  bool
	EndsWithHole  bool
	UnmockedCmds  []CommandMatcher
}

// PopStep removes and returns the first unconsumed step, if any.
func (t *Test) PopStep() (Step, bool) {
	if len(t.Steps) == 0 {
		return Step{}, false
	}
	step := t.Steps[0]
	t.Steps = t.Steps[1:]
	return step, true
}

// IsUnmocked reports whether cmd matches one of the test's declared
// unmocked commands, i.e. a program that should run for real rather than
// being intercepted and replaced with a mock.
func (t *Test) IsUnmocked(cmd Command) bool {
	names := t.MockedExecutableNames()
	for _, m := range t.UnmockedCmds {
		if m.Matches(cmd, names) {
			return true
		}
	}
	return false
}

// MockedExecutableNames returns the executables named by this test's
// exact-match steps: the set of programs for which a mock executable will
// be fabricated over the course of the run, consulted by path
// canonicalization so a bare mocked name and a path resolving to the same
// place compare equal even before the mock file exists on disk.
func (t *Test) MockedExecutableNames() []string {
	var names []string
	for _, step := range t.Steps {
		if step.Matcher.kind == exactMatch {
			names = append(names, step.Matcher.command.Executable)
		}
	}
	return names
}

// CheckerResult is the outcome of running one Test: either it passed, or it
// failed with a human-readable explanation of the first mismatch found.
// Per the underlying invariant, only the FIRST failure is ever recorded;
// once Fail has been called the result never changes again.
type CheckerResult struct {
	failed  bool
	message string
}

// Pass is the zero-value CheckerResult: no failure has been recorded.
var Pass = CheckerResult{}

// Fail returns a failed CheckerResult carrying message, unless r already
// recorded an earlier failure, in which case r is returned unchanged
// (first failure wins).
func (r CheckerResult) Fail(message string) CheckerResult {
	if r.failed {
		return r
	}
	return CheckerResult{failed: true, message: message}
}

// IsPass reports whether no failure was ever recorded.
func (r CheckerResult) IsPass() bool {
	return !r.failed
}

// Format renders r the way the driver prints a single test's result.
// number is nil when this is the only test in the suite (no "test N"
// prefix is needed); otherwise it is the 1-based position of this test.
func (r CheckerResult) Format(number *int) string {
	if r.failed {
		if number == nil {
			return fmt.Sprintf("error:\n%s", r.message)
		}
		return fmt.Sprintf("error in test %d:\n%s", *number, r.message)
	}
	if number == nil {
		panic("scriptkeeper bug: Format(nil) called on a passing result outside a single-result suite")
	}
	return fmt.Sprintf("test %d:\n  Tests passed.\n", *number)
}

// CheckerResults is the outcome of running every Test in a suite.
type CheckerResults []CheckerResult

// IsPass reports whether every result in rs passed.
func (rs CheckerResults) IsPass() bool {
	for _, r := range rs {
		if !r.IsPass() {
			return false
		}
	}
	return true
}

// ExitCode is the process exit code the CLI should use to summarize rs: 0
// if every test passed, 1 otherwise.
func (rs CheckerResults) ExitCode() int {
	if rs.IsPass() {
		return 0
	}
	return 1
}

// Format renders the whole suite's outcome the way the driver prints it to
// stdout: a single "All tests passed." line when everything passed, or one
// of the single/plural per-test renderings from CheckerResult.Format
// otherwise.
func (rs CheckerResults) Format() string {
	if rs.IsPass() {
		return "All tests passed.\n"
	}
	if len(rs) == 1 {
		return rs[0].Format(nil)
	}
	out := ""
	for i, r := range rs {
		n := i + 1
		out += r.Format(&n)
	}
	return out
}
