package parser

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_SimpleGET(t *testing.T) {
	input := `
steps:
  - name: Get User
    url: https://api.example.com/users/1
    expect:
      status: 200
`
	script, err := Parse(input, "test.yaml")
	require.NoError(t, err)
	require.NoError(t, script.Validate())
	require.Len(t, script.Steps, 1)

	step := script.Steps[0]
	assert.Equal(t, "Get User", step.Name)
	assert.Equal(t, "GET", step.Method)
	assert.Equal(t, "https://api.example.com/users/1", step.URL)
	require.NotNil(t, step.Expect)
	assert.Equal(t, 200, step.Expect.Status)
	assert.Equal(t, 3, step.Line)
}

func TestParser_ParamsKeepOrder(t *testing.T) {
	input := `
steps:
  - url: https://api.example.com/data
    params:
      q: test
      limit: 5
      tag: [a, b]
      after: x
`
	script, err := Parse(input, "test.yaml")
	require.NoError(t, err)

	assert.Equal(t, "q=test&limit=5&tag=a&tag=b&after=x", script.Steps[0].Params.Encode())
}

func TestParser_JSONBodyKeepsKeyOrder(t *testing.T) {
	input := `
steps:
  - method: post
    url: https://api.example.com/submit
    json:
      zeta: 1
      alpha:
        y: true
        b: [1, "two"]
      key: value
`
	script, err := Parse(input, "test.yaml")
	require.NoError(t, err)

	step := script.Steps[0]
	assert.Equal(t, "POST", step.Method)

	data, err := json.Marshal(step.JSON)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":1,"alpha":{"y":true,"b":[1,"two"]},"key":"value"}`, string(data))
}

func TestParser_SessionsAndCaptures(t *testing.T) {
	input := `
steps:
  - url: http://localhost/login
    session: main
    capture:
      user: user
      sid: header Set-Cookie
      code: status
  - url: http://localhost/whoami
    session: main
  - url: http://localhost/other
    session: admin
  - url: http://localhost/plain
`
	script, err := Parse(input, "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "admin"}, script.Sessions())

	captures, err := script.Steps[0].Captures()
	require.NoError(t, err)
	require.Len(t, captures, 3)
	// sorted by name
	assert.Equal(t, "code", captures[0].Name)
	assert.Equal(t, CaptureStatus, captures[0].Source)
	assert.Equal(t, "sid", captures[1].Name)
	assert.Equal(t, CaptureHeader, captures[1].Source)
	assert.Equal(t, "Set-Cookie", captures[1].Path)
	assert.Equal(t, CaptureBody, captures[2].Source)
	assert.Equal(t, "user", captures[2].Path)
}

func TestParseCapture(t *testing.T) {
	tests := []struct {
		expr   string
		source CaptureSource
		path   string
	}{
		{"status", CaptureStatus, ""},
		{"duration", CaptureDuration, ""},
		{"header X-Request-Id", CaptureHeader, "X-Request-Id"},
		{"body", CaptureBody, ""},
		{"body.data.id", CaptureBody, "data.id"},
		{"items.0.name", CaptureBody, "items.0.name"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCapture("x", tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.source, c.Source)
			assert.Equal(t, tt.path, c.Path)
		})
	}

	_, err := ParseCapture("x", "  ")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "no steps",
			input:  "name: empty",
			errMsg: "script has no steps",
		},
		{
			name:   "missing url",
			input:  "steps:\n  - name: nothing",
			errMsg: "step has no url",
		},
		{
			name:   "bad method",
			input:  "steps:\n  - method: brew\n    url: http://x",
			errMsg: `unsupported method "BREW"`,
		},
		{
			name:   "json and body",
			input:  "steps:\n  - url: http://x\n    body: raw\n    json: {a: 1}",
			errMsg: "mutually exclusive",
		},
		{
			name:   "bad timeout",
			input:  "steps:\n  - url: http://x\n    timeout: soon",
			errMsg: `invalid timeout "soon"`,
		},
		{
			name:   "status out of range",
			input:  "steps:\n  - url: http://x\n    expect:\n      status: 42",
			errMsg: "expect.status 42 out of range",
		},
		{
			name:   "schema list",
			input:  "steps:\n  - url: http://x\n    expect:\n      schema: [1]",
			errMsg: "expect.schema",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Parse(tt.input, "bad.yaml")
			require.NoError(t, err)

			err = script.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Contains(t, err.Error(), "bad.yaml:")
		})
	}
}

func TestValidate_ReportsEveryStep(t *testing.T) {
	input := `
steps:
  - name: one
  - name: two
    url: http://x
    method: nope
`
	script, err := Parse(input, "multi.yaml")
	require.NoError(t, err)

	err = script.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1 (one)")
	assert.Contains(t, err.Error(), "step 2 (two)")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse("steps:\n  - url: [", "broken.yaml")
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "broken.yaml", parseErr.File)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - url: http://localhost/\n"), 0644))

	script, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, script.Path)
	assert.NoError(t, script.Validate())

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	script := Default()
	require.NoError(t, script.Validate())
	require.Len(t, script.Steps, 3)

	assert.Equal(t, "GET", script.Steps[0].Method)
	assert.Equal(t, "q=test&limit=5", script.Steps[1].Params.Encode())

	submit := script.Steps[2]
	assert.Equal(t, "POST", submit.Method)
	assert.Equal(t, "main", submit.Session)
	data, err := json.Marshal(submit.JSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"value"}`, string(data))
}
