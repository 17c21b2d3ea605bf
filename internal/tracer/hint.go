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
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ParseHashbang returns the interpreter line of program's hash-bang
// ("#!...") if it has one, or "" if the file has none or cannot be read.
// It never errors: a missing hash-bang is just a missing hint, not a
// failure worth reporting on top of the execve failure it is explaining.
func ParseHashbang(program string) string {
	f, err := os.Open(program)
	if err != nil {
		return ""
	}
	defer f.Close()

	r := bufio.NewReader(f)
	prefix, err := r.Peek(2)
	if err != nil || string(prefix) != "#!" {
		return ""
	}
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSuffix(line, "\n")
}

// FormatExecveError renders the diagnostic shown when the traced script's
// own execve fails (not a mocked step — the original program failing to
// even start). It names the program, the underlying error, and a hint at
// what might be missing: the hash-bang interpreter if one was found in the
// program's first line, or the literal phrase "your interpreter" when the
// program has none to parse.
func FormatExecveError(program string, cause error) string {
	hint := ParseHashbang(program)
	if hint == "" {
		hint = "your interpreter"
	} else {
		hint = strings.TrimPrefix(hint, "#!")
		hint = strings.TrimSpace(hint)
	}
	return fmt.Sprintf("execve'ing %s failed with error: %s\nDoes %s exist?", program, cause, hint)
}
