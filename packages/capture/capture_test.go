package capture

import (
	nethttp "net/http"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/stretchr/testify/assert"
)

func newResponse(body string) *http.Response {
	h := nethttp.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Request-Id", "req-1")
	return &http.Response{
		StatusCode: 201,
		Headers:    h,
		Body:       []byte(body),
		Duration:   42 * time.Millisecond,
	}
}

func TestExtract(t *testing.T) {
	resp := newResponse(`{"user": {"name": "ada", "id": 7}, "tags": ["a", "b"]}`)
	e := NewExtractor(resp)

	tests := []struct {
		name    string
		capture *parser.Capture
		want    string
		ok      bool
	}{
		{"string path", &parser.Capture{Source: parser.CaptureBody, Path: "user.name"}, "ada", true},
		{"number path", &parser.Capture{Source: parser.CaptureBody, Path: "user.id"}, "7", true},
		{"array path", &parser.Capture{Source: parser.CaptureBody, Path: "tags"}, `["a", "b"]`, true},
		{"missing path", &parser.Capture{Source: parser.CaptureBody, Path: "user.email"}, "", false},
		{"header", &parser.Capture{Source: parser.CaptureHeader, Path: "x-request-id"}, "req-1", true},
		{"missing header", &parser.Capture{Source: parser.CaptureHeader, Path: "X-Nope"}, "", false},
		{"status", &parser.Capture{Source: parser.CaptureStatus}, "201", true},
		{"duration", &parser.Capture{Source: parser.CaptureDuration}, "42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := e.Extract(tt.capture)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtract_TextBody(t *testing.T) {
	resp := newResponse("plain text")

	got, ok := NewExtractor(resp).Extract(&parser.Capture{Source: parser.CaptureBody})
	assert.True(t, ok)
	assert.Equal(t, "plain text", got)

	_, ok = NewExtractor(resp).Extract(&parser.Capture{Source: parser.CaptureBody, Path: "a"})
	assert.False(t, ok)
}

func TestExtractAll(t *testing.T) {
	resp := newResponse(`{"token": "abc"}`)

	values, missing := ExtractAll(resp, []*parser.Capture{
		{Name: "token", Source: parser.CaptureBody, Path: "token"},
		{Name: "code", Source: parser.CaptureStatus},
		{Name: "gone", Source: parser.CaptureBody, Path: "gone"},
	})

	assert.Equal(t, map[string]string{"token": "abc", "code": "201"}, values)
	assert.Equal(t, []string{"gone"}, missing)
}
