// Package http provides a small request/response HTTP client with
// explicit sessions.
//
// It wraps the standard library's http package with:
//   - Ordered query parameters and JSON bodies
//   - Fully read responses with lazy JSON decoding and gjson lookups
//   - Sessions that pool connections per scheme/host/port and keep cookies
//   - A closed error taxonomy (see Error and ErrorKind)
//
// A Client performs exactly one attempt per call. Retrying is left to the
// caller, who can inspect the error kind:
//
//	resp, err := client.Get(ctx, "https://example.test/data", nil)
//	switch http.KindOf(err) {
//	case http.KindTimeout, http.KindConnection:
//	    // caller's choice
//	}
package http
