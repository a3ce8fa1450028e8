// Package http holds the protocol level pieces shared by the request adapter:
// versions and field lines.
//
// Reference:
//
// - https://datatracker.ietf.org/doc/html/rfc9110
//
// - https://datatracker.ietf.org/doc/html/rfc9112
package http
