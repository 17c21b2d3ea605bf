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
	"testing"

	"github.com/anonymouse64/scriptkeeper/internal/tracee"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type memoryTestSuite struct{}

var _ = Suite(&memoryTestSuite{})

func (s *memoryTestSuite) TestStringToDataRoundTrip(c *C) {
	tt := []struct {
		s       string
		maxSize int
		comment string
	}{
		{s: "hi", maxSize: 8, comment: "fits in one word"},
		{s: "", maxSize: 8, comment: "empty string"},
		{s: "exactly", maxSize: 8, comment: "seven chars plus NUL fills one word"},
		{s: "a string longer than one word", maxSize: 64, comment: "spans several words"},
	}

	for _, t := range tt {
		data, err := tracee.StringToData(t.s, t.maxSize)
		c.Assert(err, IsNil, Commentf(t.comment))
		c.Assert(len(data)%8, Equals, 0, Commentf(t.comment))

		// the encoded bytes must start with the string itself...
		c.Assert(string(data[:len(t.s)]), Equals, t.s, Commentf(t.comment))
		// ...and the remainder must be a NUL pad.
		for _, b := range data[len(t.s):] {
			c.Assert(b, Equals, byte(0), Commentf(t.comment))
		}
	}
}

func (s *memoryTestSuite) TestStringToDataTooLong(c *C) {
	_, err := tracee.StringToData("this string does not fit", 8)
	c.Assert(err, ErrorMatches, "string_to_data: string too long")
}

func (s *memoryTestSuite) TestStringToDataWordCount(c *C) {
	tt := []struct {
		s             string
		maxSize       int
		expectedWords int
	}{
		{s: "", maxSize: 8, expectedWords: 1},
		{s: "abc", maxSize: 8, expectedWords: 1},
		{s: "abcdefg", maxSize: 8, expectedWords: 1},
		{s: "abcdefgh", maxSize: 16, expectedWords: 2},
	}

	for _, t := range tt {
		data, err := tracee.StringToData(t.s, t.maxSize)
		c.Assert(err, IsNil)
		c.Assert(len(data)/8, Equals, t.expectedWords)
	}
}
