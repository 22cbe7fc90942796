package capture

import (
	"strconv"

	"github.com/abdul-hamid-achik/hitreq/packages/core/parser"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/tidwall/gjson"
)

type Extractor struct {
	response *http.Response
	bodyJSON gjson.Result
}

func NewExtractor(resp *http.Response) *Extractor {
	e := &Extractor{
		response: resp,
	}
	if gjson.ValidBytes(resp.Body) {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

// Extract returns the captured value as text. JSON strings are unquoted;
// numbers, objects and arrays keep their JSON form.
func (e *Extractor) Extract(capture *parser.Capture) (string, bool) {
	switch capture.Source {
	case parser.CaptureBody:
		return e.extractFromBody(capture.Path)
	case parser.CaptureHeader:
		return e.extractFromHeader(capture.Path)
	case parser.CaptureStatus:
		return strconv.Itoa(e.response.StatusCode), true
	case parser.CaptureDuration:
		return strconv.FormatInt(e.response.DurationMs(), 10), true
	default:
		return "", false
	}
}

func (e *Extractor) extractFromBody(path string) (string, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.Text(), true
		}
		return "", false
	}

	if path == "" {
		return e.bodyJSON.Raw, true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return "", false
	}
	return result.String(), true
}

func (e *Extractor) extractFromHeader(name string) (string, bool) {
	value := e.response.Header(name)
	if value == "" {
		return "", false
	}
	return value, true
}

// ExtractAll returns the captures found in resp, keyed by name, and the
// names of captures that matched nothing.
func ExtractAll(resp *http.Response, captures []*parser.Capture) (map[string]string, []string) {
	extractor := NewExtractor(resp)
	results := make(map[string]string)
	var missing []string

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		} else {
			missing = append(missing, c.Name)
		}
	}

	return results, missing
}
