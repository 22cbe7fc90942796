// Package env resolves {{...}} placeholders in request scripts.
//
// Placeholders are looked up in this order:
//   - {{$NAME}} reads the process environment
//   - {{uuid()}}, {{now()}}, {{timestamp()}} call a built-in function
//   - captures taken from earlier responses
//   - script and config variables
//
// Unresolved placeholders are left in place and reported through the
// resolver's warn function.
package env
