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
	"regexp"
	"strings"
)

// FormatCommand renders cmd back into the single-line syntax ParseCommand
// accepts: the executable canonicalized to its shortest equivalent form,
// followed by each argument, quoted and escaped if it needs to be.
func FormatCommand(cmd Command) string {
	words := []string{Canonicalize(nil, cmd.Executable)}
	for _, a := range cmd.Arguments {
		words = append(words, formatArgument(a))
	}
	return strings.Join(words, " ")
}

func formatArgument(a string) string {
	escaped := strings.NewReplacer(
		"\\", "\\\\",
		"\"", "\\\"",
		"\n", "\\n",
	).Replace(a)
	if strings.Contains(a, " ") || a == "" {
		return "\"" + escaped + "\""
	}
	return escaped
}

// buildRegexSource reassembles a command line parsed as a mix of plain and
// backtick-regex words into one anchored regular expression source: plain
// words are escaped with regexp.QuoteMeta so they match themselves
// literally, and regex words are spliced in verbatim, all joined by a
// literal-space pattern (the formatted command is always single-spaced).
func buildRegexSource(words []argument) string {
	parts := make([]string, len(words))
	for i, w := range words {
		if w.isRegex {
			parts[i] = w.text
		} else {
			parts[i] = regexp.QuoteMeta(w.text)
		}
	}
	return strings.Join(parts, " ")
}
