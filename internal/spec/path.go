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

package spec

import (
	"os/exec"
	"path/filepath"
)

// lookPath is exec.LookPath, indirected through a package var so tests can
// mock it the way commands.go's userCurrent is mocked elsewhere in this
// codebase: point PATH at a scratch directory and replace lookPath so the
// test controls exactly which names resolve.
var lookPath = exec.LookPath

// MockLookPath replaces lookPath for the duration of a test and returns a
// function that restores the original.
func MockLookPath(fn func(string) (string, error)) (restore func()) {
	old := lookPath
	lookPath = fn
	return func() {
		lookPath = old
	}
}

// Canonicalize shortens executable to its bare file name when doing so
// would not change which program actually runs: if executable has no
// directory component it is already in its shortest form; otherwise, if
// looking up its file name on PATH (or finding it declared as one of
// mockedExecutables, which PATH cannot see since they don't exist on disk
// yet when a test script is merely being parsed) resolves to the exact
// same absolute path, the directory component carries no information and
// is dropped. Any other path, relative, not found on PATH or found
// somewhere else, is returned unchanged, since shortening it would change
// its meaning.
func Canonicalize(mockedExecutables []string, executable string) string {
	name := filepath.Base(executable)
	if name == executable {
		return executable
	}

	resolved, ok := resolveName(mockedExecutables, name)
	if !ok {
		return executable
	}
	if resolved == executable && filepath.IsAbs(executable) {
		return name
	}
	return executable
}

// resolveName looks up name the way the tracer's PATH search would: via the
// real PATH lookup first, falling back to the executables this test
// declares as mocked (which canonicalize must still treat as present even
// though mock files are materialized lazily) only when PATH doesn't have an
// answer.
func resolveName(mockedExecutables []string, name string) (string, bool) {
	if resolved, err := lookPath(name); err == nil {
		return resolved, true
	}
	for _, m := range mockedExecutables {
		if filepath.Base(m) == name {
			return m, true
		}
	}
	return "", false
}

// CompareExecutables reports whether a and b name the same executable,
// treating an absolute or relative path and its bare file name as
// equivalent whenever canonicalization would shorten one to the other.
// mockedExecutables is the current test's declared set of not-yet-created
// mock executables, consulted the same way Canonicalize consults it.
func CompareExecutables(mockedExecutables []string, a, b string) bool {
	return Canonicalize(mockedExecutables, a) == Canonicalize(mockedExecutables, b)
}
