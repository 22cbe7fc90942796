// Package capture extracts values from HTTP responses for use in later
// script steps.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Response status code and duration
//
// Captured values are reachable in later steps as {{name}} or
// {{step.name}}.
package capture
