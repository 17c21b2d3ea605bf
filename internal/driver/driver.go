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

// Package driver wires the consumers (checker, recorder) to a forked
// tracee for a single script, and decides, for a script whose test file
// ends in a hole, whether a recording run passed cleanly enough to be
// written back to disk.
package driver

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/anonymouse64/scriptkeeper/internal/checker"
	"github.com/anonymouse64/scriptkeeper/internal/recorder"
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	"github.com/anonymouse64/scriptkeeper/internal/tracer"
	"github.com/snapcore/snapd/gadget/quantity"
)

// Run executes scriptPath's test file (loaded via spec.LoadTestFile)
// against a freshly forked, ptrace'd run of the script, and returns the
// resulting CheckerResult. If the test file ends in the hole marker, or
// forceRecord is set, the declared steps are still checked against mocks,
// every command run after they are used up is recorded for real and, if
// the result is a pass, the test file is rewritten with the filled-in
// steps.
func Run(selfPath, scriptPath string, forceRecord bool) (spec.CheckerResult, error) {
	test, err := spec.LoadTestFile(scriptPath)
	if err != nil {
		return spec.CheckerResult{}, err
	}

	if forceRecord || test.EndsWithHole {
		return runAndFillHoles(selfPath, scriptPath, test)
	}
	return runChecked(selfPath, scriptPath, test)
}

// mockDir is where mock executables are created. A mock's path is written
// over the tracee's execve path argument as a single word, so
// "<mockDir>/<two-character name>" has to fit in seven bytes.
const mockDir = "/tmp"

func runChecked(selfPath, scriptPath string, test *spec.Test) (spec.CheckerResult, error) {
	chk := checker.New(test, selfPath, mockDir)
	defer chk.Close()

	exitCode, stderr, stderrCaptured, err := runTracee(scriptPath, test, chk)
	if err != nil {
		return spec.CheckerResult{}, err
	}

	return chk.HandleEnd(exitCode, stderr, stderrCaptured), nil
}

func runAndFillHoles(selfPath, scriptPath string, test *spec.Test) (spec.CheckerResult, error) {
	mockDir, err := ioutil.TempDir("", "scriptkeeper")
	if err != nil {
		return spec.CheckerResult{}, fmt.Errorf("creating mock executable directory: %w", err)
	}
	defer os.RemoveAll(mockDir)

	chk := checker.New(test, selfPath, mockDir)
	defer chk.Close()

	hr := recorder.NewHoleRecorder(chk, test.UnmockedCmds)

	exitCode, _, _, err := runTracee(scriptPath, test, hr)
	if err != nil {
		return spec.CheckerResult{}, err
	}

	filledTest, result := hr.Finish(exitCode)
	if result.IsPass() {
		n, err := spec.Rewrite(spec.FindTestFile(scriptPath), filledTest)
		if err != nil {
			return result, err
		}
		log.Printf("test holes filled in %s (%s).", spec.FindTestFile(scriptPath), quantity.Size(n).IECString())
	}
	return result, nil
}

// mock is tracer.Mock, the interface a single-test run dispatches to; both
// *checker.Checker and *recorder.HoleRecorder satisfy it.
type mock = tracer.Mock

// runTracee forks scriptPath under trace with test's declared
// arguments/environment/working directory and drives it to completion
// against m, returning its exit code and, when the test declares an
// expected stderr, the captured stderr bytes. A declared interpreter is
// run with scriptPath as its first argument in place of the script's own
// hash-bang line.
func runTracee(scriptPath string, test *spec.Test, m mock) (exitCode int, stderr []byte, stderrCaptured bool, err error) {
	redirector, err := tracer.NewRedirector()
	if err != nil {
		return 0, nil, false, fmt.Errorf("setting up stderr capture: %w", err)
	}

	program := scriptPath
	argv := append([]string{scriptPath}, test.Arguments...)
	if test.Interpreter != "" {
		program = test.Interpreter
		argv = append([]string{test.Interpreter}, argv...)
	}
	env := buildEnv(test.Env)
	dir := ""
	if test.HasCwd {
		dir = test.Cwd
	}

	root, err := tracer.Start(program, argv, env, dir, redirector)
	if err != nil {
		return 0, nil, false, err
	}

	exitCode, err = tracer.New(root).Run(m)
	if err != nil {
		return 0, nil, false, err
	}

	captured, err := redirector.Wait()
	if err != nil {
		return 0, nil, false, fmt.Errorf("reading captured stderr: %w", err)
	}
	return exitCode, captured, test.HasStderr, nil
}

func buildEnv(declared map[string]string) []string {
	env := os.Environ()
	for k, v := range declared {
		env = append(env, k+"="+v)
	}
	return env
}
