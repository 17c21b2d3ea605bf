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
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/anonymouse64/scriptkeeper/internal/files"
	"gopkg.in/yaml.v2"
)

// testFileSuffix is appended to a script's own path to find its sibling
// test spec: "./deploy.sh" is tested by "./deploy.sh.test.yaml".
const testFileSuffix = ".test.yaml"

// holeSentinel marks a step whose command, and every step after it, is not
// yet known and should be filled in by recording a real run instead of
// checked against.
const holeSentinel = "_"

// rawStep mirrors one YAML steps[] entry, which is either a bare string
// (an exact or backtick-regex command with empty stdout and exit code 0)
// or a hash with a command plus optional stdout/exitcode.
type rawStep struct {
	scalar   string
	isScalar bool
	Command  string `yaml:"command"`
	Stdout   string `yaml:"stdout"`
	ExitCode int    `yaml:"exitcode"`
}

func (r *rawStep) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err == nil {
		r.scalar = s
		r.isScalar = true
		return nil
	}
	type plain rawStep
	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}
	*r = rawStep(p)
	return nil
}

// rawTest mirrors the on-disk YAML shape of a test file.
type rawTest struct {
	Arguments        []string          `yaml:"arguments"`
	Env              map[string]string `yaml:"env"`
	Cwd              *string           `yaml:"cwd"`
	Interpreter      string            `yaml:"interpreter"`
	MockedFiles      []string          `yaml:"mockedFiles"`
	UnmockedCommands []string          `yaml:"unmockedCommands"`
	Stderr           *string           `yaml:"stderr"`
	ExitCode         *int              `yaml:"exitcode"`
	Steps            []rawStep         `yaml:"steps"`
}

// FindTestFile returns the sibling test-spec path for scriptPath.
func FindTestFile(scriptPath string) string {
	return scriptPath + testFileSuffix
}

// LoadTestFile reads and parses the test spec sibling to scriptPath. A
// missing file is reported with the exact diagnostic text the driver
// surfaces to the user.
func LoadTestFile(scriptPath string) (*Test, error) {
	testFilePath := FindTestFile(scriptPath)
	contents, err := ioutil.ReadFile(testFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("test file not found: %s", testFilePath)
		}
		return nil, fmt.Errorf("reading test file %s: %w", testFilePath, err)
	}
	return ParseTest(contents)
}

// ParseTest decodes a test spec from raw YAML bytes.
func ParseTest(contents []byte) (*Test, error) {
	var raw rawTest
	if err := yaml.Unmarshal(contents, &raw); err != nil {
		return nil, fmt.Errorf("invalid test spec: %w", err)
	}

	test := &Test{
		Arguments: raw.Arguments,
		Env:       raw.Env,
	}
	if raw.Cwd != nil {
		test.Cwd = *raw.Cwd
		test.HasCwd = true
	}
	if raw.Stderr != nil {
		test.Stderr = []byte(*raw.Stderr)
		test.HasStderr = true
	}
	if raw.ExitCode != nil {
		test.ExitCode = *raw.ExitCode
	}
	test.Interpreter = raw.Interpreter
	test.MockedFiles = raw.MockedFiles

	for _, u := range raw.UnmockedCommands {
		m, err := ParseCommandMatcher(u)
		if err != nil {
			return nil, fmt.Errorf("invalid unmockedCommands entry %q: %w", u, err)
		}
		test.UnmockedCmds = append(test.UnmockedCmds, m)
	}

	for i, rs := range raw.Steps {
		if rs.isScalar && rs.scalar == holeSentinel {
			if i != len(raw.Steps)-1 {
				return nil, fmt.Errorf("the hole marker %q may only appear as the last step", holeSentinel)
			}
			test.EndsWithHole = true
			break
		}

		var line string
		var stdout string
		var exitcode int
		if rs.isScalar {
			line = rs.scalar
		} else {
			line = rs.Command
			stdout = rs.Stdout
			exitcode = rs.ExitCode
		}

		matcher, err := ParseCommandMatcher(line)
		if err != nil {
			return nil, fmt.Errorf("invalid step %d: %w", i+1, err)
		}

		test.Steps = append(test.Steps, Step{
			Matcher:  matcher,
			Stdout:   []byte(stdout),
			ExitCode: exitcode,
		})
	}

	return test, nil
}

// marshalable mirrors rawTest but without the hole-decoding logic, used
// when serializing a Test back to YAML after hole-filling.
type marshalTest struct {
	Arguments        []string          `yaml:"arguments,omitempty"`
	Env              map[string]string `yaml:"env,omitempty"`
	Cwd              *string           `yaml:"cwd,omitempty"`
	Interpreter      string            `yaml:"interpreter,omitempty"`
	MockedFiles      []string          `yaml:"mockedFiles,omitempty"`
	UnmockedCommands []string          `yaml:"unmockedCommands,omitempty"`
	Stderr           *string           `yaml:"stderr,omitempty"`
	ExitCode         *int              `yaml:"exitcode,omitempty"`
	Steps            []marshalStep     `yaml:"steps"`
}

type marshalStep struct {
	Command  string `yaml:"command"`
	Stdout   string `yaml:"stdout,omitempty"`
	ExitCode int    `yaml:"exitcode,omitempty"`
}

// Marshal serializes test back to the on-disk YAML shape. It is used after
// a recording run fills in a test's hole: every step, recorded or
// originally declared, is written out as a command/stdout/exitcode hash so
// re-parsing it is lossless.
func Marshal(test *Test) ([]byte, error) {
	raw := marshalTest{
		Arguments:   test.Arguments,
		Env:         test.Env,
		Interpreter: test.Interpreter,
		MockedFiles: test.MockedFiles,
	}
	if test.HasCwd {
		raw.Cwd = &test.Cwd
	}
	if test.HasStderr {
		s := string(test.Stderr)
		raw.Stderr = &s
	}
	if test.ExitCode != 0 {
		ec := test.ExitCode
		raw.ExitCode = &ec
	}
	// a regex matcher is written back as one backtick word holding its
	// whole source, so that it re-parses to the same regex
	formatMatcher := func(m CommandMatcher) string {
		if m.kind == regexMatch {
			return "`" + strings.ReplaceAll(m.raw, "`", "\\`") + "`"
		}
		return m.Format()
	}
	for _, m := range test.UnmockedCmds {
		raw.UnmockedCommands = append(raw.UnmockedCommands, formatMatcher(m))
	}
	for _, step := range test.Steps {
		raw.Steps = append(raw.Steps, marshalStep{
			Command:  formatMatcher(step.Matcher),
			Stdout:   string(step.Stdout),
			ExitCode: step.ExitCode,
		})
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling test spec: %w", err)
	}
	return out, nil
}

// Rewrite truncates and rewrites the test spec file at testFilePath with
// test's current contents, the way a completed hole-fill recording is
// written back to disk.
func Rewrite(testFilePath string, test *Test) (int, error) {
	out, err := Marshal(test)
	if err != nil {
		return 0, err
	}
	f, err := files.EnsureExistsAndOpen(testFilePath, true)
	if err != nil {
		return 0, fmt.Errorf("rewriting test spec %s: %w", testFilePath, err)
	}
	defer f.Close()
	n, err := f.Write(out)
	if err != nil {
		return 0, fmt.Errorf("rewriting test spec %s: %w", testFilePath, err)
	}
	return n, nil
}
