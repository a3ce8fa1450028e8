// Package client sends HTTP requests through a host request primitive.
package client

import (
	"context"
	"log/slog"

	"browser-http/application/http/semantic"
	"browser-http/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Client struct {
	factory  transport.Factory
	registry *registry

	opts Options

	logger *slog.Logger
	clock  clock.Clock
}

func New(
	factory transport.Factory,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Client {
	return &Client{
		factory:  factory,
		registry: newRegistry(),
		opts:     opts,
		logger:   logger,
		clock:    clock,
	}
}

// Send issues request and waits until it settles.
//
// Cancelling ctx requests cancellation on the request's token, the send then
// settles through the primitive's abort signal. Every error is an *Error.
func (c *Client) Send(ctx context.Context, request *semantic.Request) (*semantic.Response, error) {
	if request == nil {
		return nil, &Error{Kind: KindInvalidRequest, cause: errors.New("request is nil")}
	}
	if err := request.Validate(); err != nil {
		return nil, newError(KindInvalidRequest, request, errors.Wrap(err, "validating request"))
	}

	start := c.clock.Now()
	res, err := c.send(ctx, request)
	c.opts.Metrics.RecordSend(string(request.Method), outcome(err), c.clock.Since(start))

	return res, err
}

// Close requests cancellation on every request in flight and aborts their
// primitives, whether or not headers were received.
// It does not wait for them to settle. Sends started after Close fail as cancelled.
func (c *Client) Close() {
	exchanges := c.registry.close()

	for _, ex := range exchanges {
		c.abort(ex)
	}
	c.opts.Metrics.RecordCloseAborts(len(exchanges))

	c.logger.Debug("client closed", slog.Int("aborted", len(exchanges)))
}

// abort never lets a misbehaving primitive break Close.
func (c *Client) abort(ex *exchange) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("abort panicked", slog.Any("panic", r))
		}
	}()

	ex.abort()
}

// InFlight returns the number of sends that can still be aborted.
func (c *Client) InFlight() int { return c.registry.len() }
