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
	"fmt"

	"github.com/anonymouse64/scriptkeeper/internal/spec"
	. "gopkg.in/check.v1"
)

type pathTestSuite struct{}

var _ = Suite(&pathTestSuite{})

func (s *pathTestSuite) TestShortensWhenFoundInPathAtSameLocation(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		if name == "ls" {
			return "/bin/ls", nil
		}
		return "", fmt.Errorf("not found")
	})
	defer restore()

	c.Assert(spec.Canonicalize(nil, "/bin/ls"), Equals, "ls")
}

func (s *pathTestSuite) TestDoesNotShortenWhenFoundElsewhere(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		if name == "ls" {
			return "/usr/bin/ls", nil
		}
		return "", fmt.Errorf("not found")
	})
	defer restore()

	c.Assert(spec.Canonicalize(nil, "/bin/ls"), Equals, "/bin/ls")
}

func (s *pathTestSuite) TestDoesNotShortenWhenNotOnPath(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		return "", fmt.Errorf("not found")
	})
	defer restore()

	c.Assert(spec.Canonicalize(nil, "/opt/tool/run"), Equals, "/opt/tool/run")
}

func (s *pathTestSuite) TestDoesNotShortenRelativePaths(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		return "./run", nil
	})
	defer restore()

	c.Assert(spec.Canonicalize(nil, "./run"), Equals, "./run")
}

func (s *pathTestSuite) TestBareNameIsUnchanged(c *C) {
	c.Assert(spec.Canonicalize(nil, "ls"), Equals, "ls")
}

func (s *pathTestSuite) TestShortensMockedExecutables(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		return "", fmt.Errorf("not found")
	})
	defer restore()

	c.Assert(spec.Canonicalize([]string{"/bin/git"}, "/bin/git"), Equals, "git")
}

func (s *pathTestSuite) TestCompareExecutablesEquivalence(c *C) {
	restore := spec.MockLookPath(func(name string) (string, error) {
		if name == "ls" {
			return "/bin/ls", nil
		}
		return "", fmt.Errorf("not found")
	})
	defer restore()

	c.Assert(spec.CompareExecutables(nil, "ls", "/bin/ls"), Equals, true)
	c.Assert(spec.CompareExecutables(nil, "ls", "/usr/bin/ls"), Equals, false)
}
