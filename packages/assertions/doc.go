// Package assertions checks responses against the expect block of a script
// step.
//
// Supported checks:
//   - status code equality
//   - ok (status in [200, 400))
//   - header substring matches
//   - body substring matches
//   - gjson path equality (query.q: test)
//   - JSON Schema validation from a file or an inline mapping
//   - maximum duration
package assertions
