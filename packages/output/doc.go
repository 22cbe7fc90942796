// Package output renders responses and script results.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Each formatter implements Formatter. The JSON formatter also implements
// Flushable and writes a single document when flushed.
package output
