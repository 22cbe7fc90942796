package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Request describes one outbound HTTP exchange. Build it with NewRequest
// and the Set* helpers; Client and Session never modify it.
type Request struct {
	Method  string
	URL     string
	Params  Params
	Headers map[string]string
	// Body is sent as-is. Ignored when JSON is set.
	Body []byte
	// JSON is marshalled as the body with Content-Type application/json
	// unless Headers already carries a Content-Type.
	JSON    any
	Timeout time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	if r.Headers == nil {
		r.Headers = make(map[string]string)
	}
	r.Headers[key] = value
	return r
}

func (r *Request) SetBody(body []byte) *Request {
	r.Body = body
	return r
}

func (r *Request) SetJSON(v any) *Request {
	r.JSON = v
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

func (r *Request) AddParam(key string, values ...string) *Request {
	r.Params = r.Params.Add(key, values...)
	return r
}

// header looks up a caller-supplied header ignoring case.
func (r *Request) header(key string) (string, bool) {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// BuildURL returns the target URL with Params appended to any query already
// present in it.
func (r *Request) BuildURL() (string, error) {
	if len(r.Params) == 0 {
		return r.URL, nil
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %v", err)
	}

	encoded := r.Params.Encode()
	if u.RawQuery == "" {
		u.RawQuery = encoded
	} else {
		u.RawQuery += "&" + encoded
	}
	return u.String(), nil
}

// Encode serializes the body. contentType is empty when the request has no
// body or the caller should pick it.
func (r *Request) Encode() (body []byte, contentType string, err error) {
	if r.JSON != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(r.JSON); err != nil {
			return nil, "", fmt.Errorf("encoding JSON body: %w", err)
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), "application/json", nil
	}
	return r.Body, "", nil
}

// Param is one query parameter with its values in insertion order.
type Param struct {
	Key    string
	Values []string
}

// Params is an ordered set of query parameters. Keys keep the position of
// their first Add; later values for the same key are appended.
type Params []Param

func (p Params) Add(key string, values ...string) Params {
	for i := range p {
		if p[i].Key == key {
			p[i].Values = append(p[i].Values, values...)
			return p
		}
	}
	return append(p, Param{Key: key, Values: append([]string(nil), values...)})
}

// Get returns the first value for key.
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key && len(param.Values) > 0 {
			return param.Values[0]
		}
	}
	return ""
}

// Encode renders the parameters as a query string. A list value becomes
// repeated key=value pairs, and keys and values are percent-escaped.
func (p Params) Encode() string {
	var b strings.Builder
	for _, param := range p {
		key := url.QueryEscape(param.Key)
		for _, v := range param.Values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(key)
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// ParseParams reads a query string back into ordered Params.
func ParseParams(query string) (Params, error) {
	var p Params
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		p = p.Add(key, value)
	}
	return p, nil
}

// UnmarshalYAML accepts a mapping whose values are scalars or sequences of
// scalars, keeping document order.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: params must be a mapping", node.Line)
	}
	var out Params
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			out = out.Add(key, val.Value)
		case yaml.SequenceNode:
			values := make([]string, 0, len(val.Content))
			for _, item := range val.Content {
				if item.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: param %q: list items must be scalars", item.Line, key)
				}
				values = append(values, item.Value)
			}
			out = out.Add(key, values...)
		default:
			return fmt.Errorf("line %d: param %q must be a scalar or list", val.Line, key)
		}
	}
	*p = out
	return nil
}

// Field is one member of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object that marshals its fields in insertion order.
// Plain maps sort their keys when marshalled; use Object when the order on
// the wire matters.
type Object []Field

func (o Object) Set(key string, value any) Object {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = value
			return o
		}
	}
	return append(o, Field{Key: key, Value: value})
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// OrderedValue decodes a YAML node into plain Go values, turning mappings
// into Object so key order survives marshalling.
func OrderedValue(node *yaml.Node) (any, error) {
	return orderedValue(node)
}

func orderedValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return orderedValue(node.Content[0])
	case yaml.AliasNode:
		return orderedValue(node.Alias)
	case yaml.MappingNode:
		obj := make(Object, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := orderedValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			obj = obj.Set(node.Content[i].Value, v)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := orderedValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
