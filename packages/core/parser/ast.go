package parser

import (
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
)

// Script is a parsed request script: variables followed by steps that run
// in order.
type Script struct {
	Path  string            `yaml:"-"`
	Name  string            `yaml:"name"`
	Vars  map[string]string `yaml:"vars"`
	Steps []*Step           `yaml:"steps"`
}

// Step is one request in a script. Steps that share a Session name share
// one connection pool and cookie jar; steps without one use the plain
// client.
type Step struct {
	Name    string            `yaml:"name"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Params  http.Params       `yaml:"params"`
	Headers map[string]string `yaml:"headers"`
	// JSON holds the decoded json: value with mapping order preserved.
	JSON    any               `yaml:"-"`
	Body    string            `yaml:"body"`
	Session string            `yaml:"session"`
	Timeout string            `yaml:"timeout"`
	Capture map[string]string `yaml:"capture"`
	Expect  *Expect           `yaml:"expect"`
	Line    int               `yaml:"-"`
}

// Expect lists the checks applied to a step's response. Zero values are
// not checked.
type Expect struct {
	Status   int               `yaml:"status"`
	Ok       *bool             `yaml:"ok"`
	Contains string            `yaml:"contains"`
	Headers  map[string]string `yaml:"headers"`
	// JSON maps gjson paths to expected values.
	JSON map[string]any `yaml:"json"`
	// Schema is a JSON Schema file path relative to the script, or an
	// inline schema mapping.
	Schema      any    `yaml:"schema"`
	MaxDuration string `yaml:"maxDuration"`
}

// Capture names a value taken from a response for use in later steps.
type Capture struct {
	Name   string
	Source CaptureSource
	Path   string
}

type CaptureSource int

const (
	CaptureBody CaptureSource = iota
	CaptureHeader
	CaptureStatus
	CaptureDuration
)

func (s CaptureSource) String() string {
	switch s {
	case CaptureBody:
		return "body"
	case CaptureHeader:
		return "header"
	case CaptureStatus:
		return "status"
	case CaptureDuration:
		return "duration"
	default:
		return "unknown"
	}
}

// ParseCapture interprets a capture expression: "status", "duration",
// "header <Name>", "body", "body.<path>" or a bare gjson path.
func ParseCapture(name, expr string) (*Capture, error) {
	expr = strings.TrimSpace(expr)
	c := &Capture{Name: name}
	switch {
	case expr == "":
		return nil, fmt.Errorf("capture %q: empty expression", name)
	case expr == "status":
		c.Source = CaptureStatus
	case expr == "duration":
		c.Source = CaptureDuration
	case strings.HasPrefix(expr, "header "):
		c.Source = CaptureHeader
		c.Path = strings.TrimSpace(strings.TrimPrefix(expr, "header "))
	case expr == "body":
		c.Source = CaptureBody
	case strings.HasPrefix(expr, "body."):
		c.Source = CaptureBody
		c.Path = strings.TrimPrefix(expr, "body.")
	default:
		c.Source = CaptureBody
		c.Path = expr
	}
	return c, nil
}

// Captures returns the step's captures sorted by name.
func (s *Step) Captures() ([]*Capture, error) {
	names := sortedKeys(s.Capture)
	captures := make([]*Capture, 0, len(names))
	for _, name := range names {
		c, err := ParseCapture(name, s.Capture[name])
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, nil
}

// Label is the name shown in output: the step name, or method and URL.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Method + " " + s.URL
}

type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
