// Package runner executes hitreq scripts.
//
// Steps run in order. Steps without a session share a plain client that
// opens a fresh connection per request; steps naming a session share that
// session's connection pool and cookie jar. Sessions are closed when the
// run ends, even when a step fails.
//
// It also provides:
//   - placeholder resolution from vars, captures and the environment
//   - response captures for later steps
//   - expectation checks on each response
//   - repeated runs paced by a rate limiter, with latency percentiles
package runner
