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

// Package mockexec fabricates the throwaway executable files a traced
// script is redirected to run in place of a real command: a hash-bang
// line pointing back at this same binary, followed by the serialized
// stdout/exit-code payload the mock should hand back when it runs.
package mockexec

import (
	"fmt"
	"os"
	"path/filepath"
)

// nameAlphabet is the 66-character alphabet short mock-executable names
// are drawn from. Names are at most two characters (66*66 = 4356
// combinations), short enough that even a long PATH-relative argv[0]
// never pushes a traced command over the kernel's exec argument-length
// limit the way a long temp path could.
const nameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890-_+="

// names enumerates every two-character combination drawn from
// nameAlphabet, the first character rolling slowest: aa, ab, ac, ....
func names() []string {
	out := make([]string, 0, len(nameAlphabet)*len(nameAlphabet))
	for _, a := range nameAlphabet {
		for _, b := range nameAlphabet {
			out = append(out, string(a)+string(b))
		}
	}
	return out
}

// ShortTempFile is a temporary file created under a short two-character
// name, removed when Close is called.
type ShortTempFile struct {
	Path string
}

// NewShortTempFile writes contents to a new file in dir under the first
// available short name, in the order names lists them. It fails if every
// name in the alphabet is already taken, or if a file cannot be created
// or written for any reason other than its name being taken.
func NewShortTempFile(dir string, contents []byte) (*ShortTempFile, error) {
	for _, name := range names() {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0777)
		if err != nil {
			if os.IsExist(err) {
				continue
			}
			return nil, fmt.Errorf("short_temp_files: %w", err)
		}
		_, writeErr := f.Write(contents)
		closeErr := f.Close()
		if writeErr != nil {
			os.Remove(path)
			return nil, fmt.Errorf("short_temp_files: %w", writeErr)
		}
		if closeErr != nil {
			os.Remove(path)
			return nil, fmt.Errorf("short_temp_files: %w", closeErr)
		}
		return &ShortTempFile{Path: path}, nil
	}
	return nil, fmt.Errorf("short_temp_files: ran out of temporary file names")
}

// Close removes the temporary file.
func (f *ShortTempFile) Close() error {
	if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("short_temp_files: removing %s: %w", f.Path, err)
	}
	return nil
}
