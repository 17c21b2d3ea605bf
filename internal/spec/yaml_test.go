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

package spec_test

import (
	"github.com/anonymouse64/scriptkeeper/internal/spec"
	. "gopkg.in/check.v1"
)

type yamlTestSuite struct{}

var _ = Suite(&yamlTestSuite{})

func (s *yamlTestSuite) TestParsesScalarAndHashSteps(c *C) {
	test, err := spec.ParseTest([]byte(`
steps:
  - ls -la
  - command: git status
    stdout: "clean"
    exitcode: 0
`))
	c.Assert(err, IsNil)
	c.Assert(len(test.Steps), Equals, 2)
	c.Assert(test.Steps[0].Matcher.Format(), Equals, "ls -la")
	c.Assert(test.Steps[1].Matcher.Format(), Equals, "git status")
	c.Assert(string(test.Steps[1].Stdout), Equals, "clean")
}

func (s *yamlTestSuite) TestTrailingHoleMarksEndsWithHole(c *C) {
	test, err := spec.ParseTest([]byte(`
steps:
  - ls -la
  - _
`))
	c.Assert(err, IsNil)
	c.Assert(test.EndsWithHole, Equals, true)
	c.Assert(len(test.Steps), Equals, 1)
}

func (s *yamlTestSuite) TestHoleMustBeLast(c *C) {
	_, err := spec.ParseTest([]byte(`
steps:
  - _
  - ls -la
`))
	c.Assert(err, ErrorMatches, `the hole marker "_" may only appear as the last step`)
}

func (s *yamlTestSuite) TestOptionalFieldsRoundTrip(c *C) {
	test, err := spec.ParseTest([]byte(`
cwd: /tmp
exitcode: 3
stderr: "oops"
mockedFiles:
  - /etc/passwd
steps:
  - ls
`))
	c.Assert(err, IsNil)
	c.Assert(test.HasCwd, Equals, true)
	c.Assert(test.Cwd, Equals, "/tmp")
	c.Assert(test.ExitCode, Equals, 3)
	c.Assert(test.HasStderr, Equals, true)
	c.Assert(string(test.Stderr), Equals, "oops")
	c.Assert(test.MockedFiles, DeepEquals, []string{"/etc/passwd"})
}

func (s *yamlTestSuite) TestFindTestFileAppendsSuffix(c *C) {
	c.Assert(spec.FindTestFile("./deploy.sh"), Equals, "./deploy.sh.test.yaml")
}

func (s *yamlTestSuite) TestMarshalThenParseIsLossless(c *C) {
	test, err := spec.ParseTest([]byte(`
arguments: ["--force"]
steps:
  - command: echo hi
    stdout: "hi\n"
    exitcode: 0
`))
	c.Assert(err, IsNil)

	out, err := spec.Marshal(test)
	c.Assert(err, IsNil)

	reparsed, err := spec.ParseTest(out)
	c.Assert(err, IsNil)
	c.Assert(reparsed.Arguments, DeepEquals, test.Arguments)
	c.Assert(len(reparsed.Steps), Equals, 1)
	c.Assert(reparsed.Steps[0].Matcher.Format(), Equals, test.Steps[0].Matcher.Format())
	c.Assert(string(reparsed.Steps[0].Stdout), Equals, string(test.Steps[0].Stdout))
}
