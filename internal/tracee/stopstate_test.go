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

package tracee_test

import (
	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	. "gopkg.in/check.v1"
)

type stopStateTestSuite struct{}

var _ = Suite(&stopStateTestSuite{})

func (s *stopStateTestSuite) TestAlternatesEnterExit(c *C) {
	t := tracee.NewStopTracker()

	stop, err := t.Advance(42, tracee.Getcwd)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Enter)

	stop, err = t.Advance(42, tracee.Getcwd)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Exit)

	// the pair is consumed; the next stop for this pid starts a fresh pair.
	stop, err = t.Advance(42, tracee.Stat)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Enter)
}

func (s *stopStateTestSuite) TestTracksPidsIndependently(c *C) {
	t := tracee.NewStopTracker()

	stop, err := t.Advance(1, tracee.Execve)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Enter)

	stop, err = t.Advance(2, tracee.Execve)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Enter)

	stop, err = t.Advance(1, tracee.Execve)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Exit)

	stop, err = t.Advance(2, tracee.Execve)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Exit)
}

func (s *stopStateTestSuite) TestMismatchedExitIsAnError(c *C) {
	t := tracee.NewStopTracker()

	_, err := t.Advance(7, tracee.Getcwd)
	c.Assert(err, IsNil)

	_, err = t.Advance(7, tracee.Stat)
	c.Assert(err, ErrorMatches, "update_syscall_state: exiting with the wrong syscall: entered getcwd, exiting stat")
}

func (s *stopStateTestSuite) TestForgetDropsEntry(c *C) {
	t := tracee.NewStopTracker()

	_, err := t.Advance(9, tracee.Execve)
	c.Assert(err, IsNil)

	t.Forget(9)

	// with the entry forgotten, the next stop on this pid is a fresh Enter
	// rather than being matched against the forgotten execve.
	stop, err := t.Advance(9, tracee.Getcwd)
	c.Assert(err, IsNil)
	c.Assert(stop, Equals, tracee.Enter)
}
