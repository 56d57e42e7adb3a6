// Package http is the transport used to send contract test requests.
//
// It wraps the standard library's http package with:
//   - Per-request deadlines taken from the caller's context
//   - Redirect handling
//   - Default headers, proxy and TLS verification options
//   - Response body capture
package http
