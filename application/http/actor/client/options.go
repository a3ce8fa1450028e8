package client

import "browser-http/application/http/actor/client/metrics"

type Options struct {
	// WithCredentials makes cross-origin requests carry credentials (cookies, auth headers).
	// It is applied to every send.
	WithCredentials bool

	Receive ReceiveOptions

	// Metrics is optional.
	Metrics *metrics.Collector
}

type ReceiveOptions struct {
	// CanonicalReasonPhrase replaces the reported reason phrase with the default one for the status code.
	// An empty reason phrase is always filled.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-4-9
	CanonicalReasonPhrase bool
}
