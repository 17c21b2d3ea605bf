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

package mockexec

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io/ioutil"
)

// hashbangPrefix is the literal start of every mock executable's first
// line; it is followed by the absolute path of this program's own binary
// and a trailing flag telling it to run in executable-mock mode.
const hashbangPrefix = "#!"

// executableMockFlag is the argument the hash-bang line passes back to
// this program's own binary so it recognizes it is being run as a mock
// rather than being asked to check a script.
const executableMockFlag = "--executable-mock"

// Config is the payload serialized into a mock executable file: what it
// should print to stdout and what exit code it should report, standing in
// for whatever the real program would have done.
type Config struct {
	Stdout   []byte
	ExitCode int
}

// Build renders the full byte contents of a mock executable file: a
// hash-bang line invoking selfPath in executable-mock mode, followed by
// cfg gob-encoded. No third-party serialization library in this codebase's
// dependency set is reused here, since this is a private, single-process
// wire format never read by anything but this same binary; the standard
// library's gob package is the idiomatic choice for that case.
func Build(selfPath string, cfg Config) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding mock executable config: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(hashbangPrefix)
	out.WriteString(selfPath)
	out.WriteString(" ")
	out.WriteString(executableMockFlag)
	out.WriteString("\n")
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// Create fabricates a new mock executable file in dir, ready to be
// execve'd in place of the command it stands in for, and returns the
// ShortTempFile owning its lifetime.
func Create(dir, selfPath string, cfg Config) (*ShortTempFile, error) {
	contents, err := Build(selfPath, cfg)
	if err != nil {
		return nil, err
	}
	return NewShortTempFile(dir, contents)
}

// skipHashbangLine returns the bytes of contents after its first newline,
// i.e. everything following the hash-bang line.
func skipHashbangLine(contents []byte) ([]byte, error) {
	i := bytes.IndexByte(contents, '\n')
	if i < 0 {
		return nil, fmt.Errorf("executable mock file has no hash-bang line")
	}
	return contents[i+1:], nil
}

// Run reads the mock executable at mockPath and returns the stdout bytes
// and exit code it was fabricated to produce. It is what the program's own
// re-exec, invoked via the hash-bang line with executableMockFlag, does to
// stand in for the command it replaced.
func Run(mockPath string) (stdout []byte, exitCode int, err error) {
	contents, err := ioutil.ReadFile(mockPath)
	if err != nil {
		return nil, 0, fmt.Errorf("reading executable mock %s: %w", mockPath, err)
	}
	payload, err := skipHashbangLine(contents)
	if err != nil {
		return nil, 0, err
	}
	var cfg Config
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&cfg); err != nil {
		return nil, 0, fmt.Errorf("decoding executable mock %s: %w", mockPath, err)
	}
	return cfg.Stdout, cfg.ExitCode, nil
}
