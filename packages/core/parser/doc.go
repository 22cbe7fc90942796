// Package parser reads hitreq request scripts.
//
// A script is a YAML document with optional vars and a list of steps. Each
// step names a method, URL, query params, headers and a json or raw body,
// plus captures and expectations checked against the response. Values may
// reference {{var}}, {{$ENV}} and ${ENV} placeholders, which the runner
// resolves just before sending.
package parser
