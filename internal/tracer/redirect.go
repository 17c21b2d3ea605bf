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

// Package tracer drives a ptrace'd tracee: forking it under trace,
// classifying and dispatching its syscall stops, and capturing the stderr
// it writes along the way.
package tracer

import (
	"bytes"
	"io"
	"os"
	"sync"
)

// Redirector captures everything the tracee writes to its stderr, the way
// a test's expected-stderr check needs the whole stream rather than a
// syscall-by-syscall view. It hands the tracee the write end of a pipe as
// its fd 2 and drains the read end on a background goroutine for the
// lifetime of the trace, so a tracee that writes more than a pipe buffer
// holds never blocks on a reader that isn't there yet.
type Redirector struct {
	writeEnd *os.File
	readEnd  *os.File

	mu       sync.Mutex
	captured bytes.Buffer
	done     chan struct{}
	readErr  error
}

// NewRedirector opens the underlying pipe. ChildFile is handed to the
// tracee as its stderr; Start must be called once the tracee exists to
// begin draining it.
func NewRedirector() (*Redirector, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &Redirector{readEnd: r, writeEnd: w, done: make(chan struct{})}, nil
}

// ChildFile is the *os.File to install as the tracee's stderr.
func (r *Redirector) ChildFile() *os.File {
	return r.writeEnd
}

// Start closes the parent's copy of the write end (so the reader sees EOF
// once the tracee, the only other holder, closes or exits) and begins
// draining the read end into the captured buffer in the background, while
// also forwarding everything read straight through to the real stderr so
// the user still sees the script's output on the terminal as it happens.
func (r *Redirector) Start() {
	r.writeEnd.Close()
	go func() {
		defer close(r.done)
		_, err := io.Copy(io.MultiWriter(&captureWriter{r: r}, os.Stderr), r.readEnd)
		if err != nil {
			r.mu.Lock()
			r.readErr = err
			r.mu.Unlock()
		}
	}()
}

// captureWriter adapts Redirector's mutex-guarded buffer to io.Writer so
// io.Copy can drain directly into it without an intermediate buffer.
type captureWriter struct {
	r *Redirector
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.r.captured.Write(p)
}

// Wait blocks until the tracee's stderr has been fully drained (the write
// end closed, which happens once the tracee and every process that
// inherited the fd has exited) and returns everything captured.
func (r *Redirector) Wait() ([]byte, error) {
	<-r.done
	r.readEnd.Close()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return nil, r.readErr
	}
	out := make([]byte, r.captured.Len())
	copy(out, r.captured.Bytes())
	return out, nil
}
