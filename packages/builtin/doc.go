// Package builtin provides the functions callable from placeholders.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current UTC time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time in seconds or milliseconds
//   - date(layout): Current UTC date, "2006-01-02" by default
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - base64(value): Base64 encode a string
//   - urlEncode(value): Query-escape a string
//
// Functions are invoked as {{uuid()}} or {{date("2006-01")}}.
package builtin
