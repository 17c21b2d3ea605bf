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

package checker_test

import (
	"testing"

	"github.com/anonymouse64/scriptkeeper/internal/checker"
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type checkerTestSuite struct{}

var _ = Suite(&checkerTestSuite{})

func mustMatcher(c *C, line string) spec.CommandMatcher {
	m, err := spec.ParseCommandMatcher(line)
	c.Assert(err, IsNil)
	return m
}

func (s *checkerTestSuite) TestHandleEndPassesWhenEverythingMatches(c *C) {
	test := &spec.Test{ExitCode: 0}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	result := chk.HandleEnd(0, nil, false)
	c.Assert(result.IsPass(), Equals, true)
}

func (s *checkerTestSuite) TestHandleEndFailsOnUnconsumedSteps(c *C) {
	test := &spec.Test{
		Steps: []spec.Step{{Matcher: mustMatcher(c, "git status")}},
	}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	result := chk.HandleEnd(0, nil, false)
	c.Assert(result.IsPass(), Equals, false)
}

func (s *checkerTestSuite) TestHandleEndFailsOnWrongExitCode(c *C) {
	test := &spec.Test{ExitCode: 0}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	result := chk.HandleEnd(1, nil, false)
	c.Assert(result.IsPass(), Equals, false)
}

func (s *checkerTestSuite) TestHandleEndChecksStderrOnlyWhenDeclared(c *C) {
	test := &spec.Test{ExitCode: 0, HasStderr: true, Stderr: []byte("expected\n")}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	result := chk.HandleEnd(0, []byte("expected\n"), true)
	c.Assert(result.IsPass(), Equals, true)

	chk2 := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())
	result2 := chk2.HandleEnd(0, []byte("different\n"), true)
	c.Assert(result2.IsPass(), Equals, false)

	undeclared := &spec.Test{ExitCode: 0}
	chk3 := checker.New(undeclared, "/usr/bin/scriptkeeper", c.MkDir())
	result3 := chk3.HandleEnd(0, []byte("anything\n"), true)
	c.Assert(result3.IsPass(), Equals, true)
}

func (s *checkerTestSuite) TestHandleEndPanicsIfStderrExpectedButNotCaptured(c *C) {
	test := &spec.Test{ExitCode: 0, HasStderr: true, Stderr: []byte("expected\n")}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	c.Assert(func() { chk.HandleEnd(0, nil, false) }, PanicMatches, "scriptkeeper bug: stderr expected, but not captured")
}

func (s *checkerTestSuite) TestFirstFailureWins(c *C) {
	test := &spec.Test{ExitCode: 5}
	chk := checker.New(test, "/usr/bin/scriptkeeper", c.MkDir())

	chk.RegisterRawError("first failure")
	chk.RegisterRawError("second failure, should be ignored")

	result := chk.Result()
	c.Assert(result.IsPass(), Equals, false)
	c.Assert(result.Format(nil), Equals, "error:\nfirst failure")
}
