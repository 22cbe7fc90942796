package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

// Response is a fully read HTTP response. It is only built once the status
// line, headers and the whole body have arrived.
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	// Reused is true when a pooled connection carried the exchange.
	Reused bool

	jsonOnce  sync.Once
	jsonValue any
	jsonErr   error
}

// Ok reports whether the status code is in [200, 400).
func (r *Response) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body on first use and caches the result.
func (r *Response) JSON() (any, error) {
	r.jsonOnce.Do(func() {
		var v any
		if err := json.Unmarshal(r.Body, &v); err != nil {
			r.jsonErr = &Error{Kind: KindParse, Op: "decode", Err: err}
			return
		}
		r.jsonValue = v
	})
	return r.jsonValue, r.jsonErr
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &Error{Kind: KindParse, Op: "decode", Err: err}
	}
	return nil
}

// Header returns the first value for key, matched case-insensitively.
func (r *Response) Header(key string) string {
	return r.Headers.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

// Get looks up a gjson path in the body, e.g. "data.items.0.id".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Body, path)
}

// ValidateSchema checks the body against a JSON schema document.
func (r *Response) ValidateSchema(schema []byte) error {
	if !gjson.ValidBytes(r.Body) {
		return &Error{Kind: KindParse, Op: "validate", Err: fmt.Errorf("body is not JSON")}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(r.Body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
