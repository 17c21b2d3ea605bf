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

package main

import (
	"log"
	"os"

	"github.com/anonymouse64/scriptkeeper/internal/driver"
	"github.com/anonymouse64/scriptkeeper/internal/mockexec"
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	flags "github.com/jessevdk/go-flags"
)

// executableMockFlag is how a fabricated mock executable's hash-bang line
// re-invokes this same binary: "#!<path-to-this-binary> --executable-mock",
// followed by the mock file's own path as argv. It is handled before
// go-flags ever sees the arguments, since it is not a user-facing
// subcommand and its sole positional argument is not a script to check.
const executableMockFlag = "--executable-mock"

// Command is the top-level CLI: a single required positional argument
// naming the script to check, plus the ambient --record and --errors
// flags.
type Command struct {
	Record     bool `long:"record" description:"Record a fresh or partially-recorded test instead of checking it"`
	ShowErrors bool `short:"e" long:"errors" description:"Show errors as they happen"`

	Args struct {
		ScriptPath string `description:"Script to check" required:"yes"`
	} `positional-args:"yes" required:"yes"`
}

var currentCmd Command
var parser = flags.NewParser(&currentCmd, flags.Default)

var errs []error

func logError(err error) {
	errs = append(errs, err)
	if currentCmd.ShowErrors {
		log.Println(err)
	}
}

func main() {
	if len(os.Args) >= 3 && os.Args[1] == executableMockFlag {
		runExecutableMock(os.Args[2])
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}

	selfPath, err := os.Executable()
	if err != nil {
		log.Fatalf("cannot determine own executable path: %v", err)
	}

	result, err := driver.Run(selfPath, currentCmd.Args.ScriptPath, currentCmd.Record)
	if err != nil {
		logError(err)
		os.Exit(1)
	}

	results := spec.CheckerResults{result}
	os.Stdout.WriteString(results.Format())
	os.Exit(results.ExitCode())
}

// runExecutableMock never returns: it is the body of a fabricated mock
// executable, run in place of whatever command a checked script expected
// to invoke, printing the recorded stdout and exiting with the recorded
// code.
func runExecutableMock(mockPath string) {
	stdout, exitCode, err := mockexec.Run(mockPath)
	if err != nil {
		log.Fatalf("running executable mock: %v", err)
	}
	os.Stdout.Write(stdout)
	os.Exit(exitCode)
}
