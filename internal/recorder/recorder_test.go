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

package recorder

import (
	"testing"

	"github.com/anonymouse64/scriptkeeper/internal/spec"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type recorderTestSuite struct{}

var _ = Suite(&recorderTestSuite{})

func (s *recorderTestSuite) TestHandleExitedWithoutPendingCommandIsANoop(c *C) {
	r := New(nil)
	r.HandleExited(123, 0)
	c.Assert(r.Steps(), HasLen, 0)
}

func (s *recorderTestSuite) TestRecordedStepUsesRealExitCode(c *C) {
	r := New(nil)
	r.pending[42] = spec.Command{Executable: "git", Arguments: []string{"status"}}

	r.HandleExited(42, 7)

	c.Assert(r.Steps(), HasLen, 1)
	c.Assert(r.Steps()[0].ExitCode, Equals, 7)
	c.Assert(r.Steps()[0].Matcher.Format(), Equals, "git status")

	// the pending entry is consumed; a second exit for the same pid
	// records nothing further.
	r.HandleExited(42, 9)
	c.Assert(r.Steps(), HasLen, 1)
}

func (s *recorderTestSuite) TestIsUnmockedMatchesOnlyDeclaredCommands(c *C) {
	m, err := spec.ParseCommandMatcher("true")
	c.Assert(err, IsNil)
	r := New([]spec.CommandMatcher{m})

	c.Assert(isUnmocked(r.unmockedCmds, spec.Command{Executable: "true"}), Equals, true)
	c.Assert(isUnmocked(r.unmockedCmds, spec.Command{Executable: "git"}), Equals, false)
}
