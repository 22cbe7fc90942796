package parser

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoSteps = errors.New("script has no steps")
	ErrNoURL   = errors.New("step has no url")
)

var allowedMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"POST":    true,
	"PUT":     true,
	"PATCH":   true,
	"DELETE":  true,
	"OPTIONS": true,
}

//go:embed sample.yaml
var sample string

func ParseFile(path string) (*Script, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(content), path)
}

// Parse decodes a YAML script. Methods are upper-cased and default to GET.
// Parse does not validate; call Validate before running.
func Parse(input, filename string) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal([]byte(input), &script); err != nil {
		return nil, &ParseError{File: filename, Line: yamlErrorLine(err), Message: err.Error()}
	}
	script.Path = filename

	for i, step := range script.Steps {
		if step == nil {
			return nil, &ParseError{File: filename, Message: fmt.Sprintf("step %d is empty", i+1)}
		}
		step.Method = strings.ToUpper(strings.TrimSpace(step.Method))
		if step.Method == "" {
			step.Method = "GET"
		}
	}
	return &script, nil
}

// Default returns the built-in sample script. It targets the local mock
// server started by "hitreq serve".
func Default() *Script {
	script, err := Parse(sample, "sample.yaml")
	if err != nil {
		panic(fmt.Sprintf("parser: embedded sample: %v", err))
	}
	return script
}

// Sample returns the source of the built-in sample script.
func Sample() string {
	return sample
}

// UnmarshalYAML decodes a step, keeping the key order of its json: body
// and recording the line it starts on.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	type plain Step
	var raw struct {
		plain `yaml:",inline"`
		JSON  yaml.Node `yaml:"json"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	*s = Step(raw.plain)
	s.Line = node.Line
	if raw.JSON.Kind != 0 {
		v, err := http.OrderedValue(&raw.JSON)
		if err != nil {
			return fmt.Errorf("line %d: json: %w", raw.JSON.Line, err)
		}
		s.JSON = v
	}
	return nil
}

// Validate reports every problem found in the script.
func (sc *Script) Validate() error {
	if len(sc.Steps) == 0 {
		return &ParseError{File: sc.Path, Line: 1, Message: ErrNoSteps.Error()}
	}

	var errs []error
	for i, step := range sc.Steps {
		for _, msg := range step.problems() {
			errs = append(errs, &ParseError{
				File:    sc.Path,
				Line:    step.Line,
				Message: fmt.Sprintf("step %d (%s): %s", i+1, step.Label(), msg),
			})
		}
	}
	return errors.Join(errs...)
}

func (s *Step) problems() []string {
	var out []string
	if strings.TrimSpace(s.URL) == "" {
		out = append(out, ErrNoURL.Error())
	}
	if !allowedMethods[s.Method] {
		out = append(out, fmt.Sprintf("unsupported method %q", s.Method))
	}
	if s.JSON != nil && s.Body != "" {
		out = append(out, "json and body are mutually exclusive")
	}
	if s.Timeout != "" {
		if d, err := time.ParseDuration(s.Timeout); err != nil || d <= 0 {
			out = append(out, fmt.Sprintf("invalid timeout %q", s.Timeout))
		}
	}
	if _, err := s.Captures(); err != nil {
		out = append(out, err.Error())
	}
	if e := s.Expect; e != nil {
		if e.Status != 0 && (e.Status < 100 || e.Status > 599) {
			out = append(out, fmt.Sprintf("expect.status %d out of range", e.Status))
		}
		if e.MaxDuration != "" {
			if _, err := time.ParseDuration(e.MaxDuration); err != nil {
				out = append(out, fmt.Sprintf("invalid expect.maxDuration %q", e.MaxDuration))
			}
		}
		switch e.Schema.(type) {
		case nil, string, map[string]any:
		default:
			out = append(out, "expect.schema must be a file path or a mapping")
		}
	}
	return out
}

// Sessions lists the distinct session names used by the script, in order of
// first use.
func (sc *Script) Sessions() []string {
	seen := make(map[string]bool)
	var names []string
	for _, step := range sc.Steps {
		if step.Session != "" && !seen[step.Session] {
			seen[step.Session] = true
			names = append(names, step.Session)
		}
	}
	return names
}

func yamlErrorLine(err error) int {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return 0
	}
	var line int
	if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
		return line
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
