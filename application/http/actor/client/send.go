package client

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	httplib "browser-http/application/http"
	"browser-http/application/http/actor/client/metrics"
	"browser-http/application/http/cancel"
	"browser-http/application/http/semantic"
	"browser-http/application/http/semantic/status"
	"browser-http/lib/promise"
	"browser-http/transport"

	"github.com/pkg/errors"
)

// exchange drives one send from request to settled result.
type exchange struct {
	c       *Client
	request *semantic.Request
	token   *cancel.Token
	p       transport.Primitive
	slot    *promise.Promise[*semantic.Response]

	// finalize releases the token. It runs once, when the first terminal
	// signal arrives or when send returns.
	finalize func()

	// settled is set by the first terminal signal.
	settled atomic.Bool
	// aborted is set when the client gave up on the exchange without going
	// through the token, so a later error signal counts as cancellation.
	aborted atomic.Bool
}

var _ cancel.Rejecter = (*exchange)(nil)

func (c *Client) send(ctx context.Context, request *semantic.Request) (*semantic.Response, error) {
	if c.registry.isClosed() {
		return nil, newError(KindCancelled, request, ErrClientClosed)
	}

	token := request.Token
	if token == nil {
		token = cancel.NewDisposable()
	}

	if err := token.Begin(); err != nil {
		return nil, newError(KindInvalidRequest, request, errors.Wrap(err, "attaching token"))
	}
	finalize := sync.OnceFunc(token.Finalize)
	defer finalize()

	if token.CancellationRequested() {
		return nil, newError(KindCancelled, request, cancel.ErrAborted)
	}

	body, err := request.Finalize()
	if err != nil {
		return nil, newError(KindTransport, request, errors.Wrap(err, "materializing body"))
	}

	ex := &exchange{
		c:        c,
		request:  request,
		token:    token,
		slot:     promise.New[*semantic.Response](),
		finalize: finalize,
	}

	ex.p = c.factory.New()
	defer ex.release()

	if err := ex.prepare(); err != nil {
		return nil, newError(KindTransport, request, err)
	}

	ex.subscribe()

	c.logger.Debug("sending request",
		slog.String("method", string(request.Method)),
		slog.String("url", request.URL.String()),
		slog.Int("body", len(body)),
	)

	if err := ex.p.Send(body); err != nil {
		return nil, newError(KindTransport, request, errors.Wrap(err, "starting primitive"))
	}

	// Only started primitives are tracked, Abort is a no-op before Send.
	if err := c.registry.add(ex); err != nil {
		// Close ran while the primitive was starting.
		ex.aborted.Store(true)
		if !ex.settled.Load() {
			ex.p.Abort()
		}
	} else {
		c.opts.Metrics.RecordTracked()
		defer ex.untrack()
	}

	res, err := ex.await(ctx)
	if err != nil {
		c.logger.Debug("request failed", slog.String("url", request.URL.String()), slog.Any("err", err))
		return nil, err
	}

	c.logger.Debug("request settled",
		slog.String("url", request.URL.String()),
		slog.Int("status", res.StatusCode()),
	)

	return res, nil
}

func (ex *exchange) prepare() error {
	p, request := ex.p, ex.request

	if err := p.Open(string(request.Method), request.URL.String(), true); err != nil {
		return errors.Wrap(err, "opening primitive")
	}
	p.SetResponseTypeBinary()
	p.SetWithCredentials(ex.c.opts.WithCredentials)

	var err error
	request.Headers.Each(func(name, value string) {
		if err != nil {
			return
		}
		err = errors.Wrapf(p.SetRequestHeader(name, value), "setting header %q", name)
	})

	return err
}

// subscribe wires the primitive's signals to the completion slot.
// Only the first terminal signal settles it.
func (ex *exchange) subscribe() {
	ex.p.OnHeadersReceived(func() {
		if ex.settled.Load() {
			return
		}
		// From now on cancellation aborts the primitive right away.
		err := ex.token.RegisterAbortHandle(ex.p.Abort, ex, ex.request.String())
		if err != nil {
			ex.c.logger.Debug("registering abort handle", slog.Any("err", err))
		}
	})

	ex.p.OnLoad(func() {
		if ex.settled.Load() {
			return
		}

		res, err := ex.response()
		if err != nil {
			ex.Reject(err)
			return
		}
		ex.resolve(res)
	})

	ex.p.OnError(func() {
		ex.Reject(errNetwork)
	})

	ex.p.OnAbort(func() {
		ex.Reject(errors.Wrap(cancel.ErrAborted, "host reported abort"))
	})
}

// settle lets the first terminal signal through. The token is finalized and
// the exchange leaves the registry before the slot is settled, so nothing
// cancels an operation that already completed.
func (ex *exchange) settle() bool {
	if !ex.settled.CompareAndSwap(false, true) {
		return false
	}
	ex.finalize()
	ex.untrack()
	return true
}

func (ex *exchange) resolve(res *semantic.Response) bool {
	return ex.settle() && ex.slot.Resolve(res)
}

// Reject makes the exchange usable as the token's completion slot.
func (ex *exchange) Reject(err error) bool {
	return ex.settle() && ex.slot.Reject(err)
}

func (ex *exchange) untrack() {
	if ex.c.registry.remove(ex) {
		ex.c.opts.Metrics.RecordUntracked()
	}
}

// abort is used by Close: cancellation is requested on the token and the
// primitive is aborted even when it has not reported headers yet.
func (ex *exchange) abort() {
	if ex.settled.Load() {
		return
	}
	ex.aborted.Store(true)
	ex.token.RequestCancellation()
	if !ex.settled.Load() {
		ex.p.Abort()
	}
}

func (ex *exchange) response() (*semantic.Response, error) {
	headers, err := semantic.ParseHeaderBlock(ex.p.AllResponseHeaders())
	if err != nil {
		return nil, errors.Wrap(err, "parsing response headers")
	}

	st := status.Resolve(ex.p.Status(), ex.p.StatusText(), ex.c.opts.Receive.CanonicalReasonPhrase)

	res := semantic.NewBufferedResponse(ex.request, st, headers, ex.p.Response())
	if pr, ok := ex.p.(transport.ProtocolReporter); ok {
		if ver, err := httplib.ParseVersion(pr.Protocol()); err == nil {
			res.Version = ver
		}
	}

	return res, nil
}

// await waits for the slot. Giving up on ctx aborts the primitive and keeps
// waiting for it to report its abort. The token is left alone, it may be
// shared with later attempts.
func (ex *exchange) await(ctx context.Context) (*semantic.Response, error) {
	var ctxErr error

	select {
	case <-ex.slot.Done():
	case <-ctx.Done():
		if !ex.settled.Load() {
			ctxErr = ctx.Err()
			ex.aborted.Store(true)
			ex.p.Abort()
		}
		<-ex.slot.Done()
	}

	res, err := ex.slot.Result()
	if err == nil {
		return res, nil
	}

	return nil, ex.classify(err, ctxErr)
}

func (ex *exchange) classify(err, ctxErr error) error {
	var kind Kind
	switch {
	case errors.Is(err, cancel.ErrAborted):
		kind = KindCancelled
	case errors.Is(err, errNetwork) && (ex.aborted.Load() || ex.token.CancellationRequested()):
		// Some hosts surface an abort as a plain error.
		kind = KindCancelled
	default:
		kind = KindTransport
	}

	if kind == KindCancelled && ctxErr != nil {
		err = errors.Wrap(ctxErr, err.Error())
	}

	return newError(kind, ex.request, err)
}

func (ex *exchange) release() {
	if r, ok := ex.p.(transport.Releaser); ok {
		r.Release()
	}
}

func newError(kind Kind, request *semantic.Request, cause error) *Error {
	e := &Error{Kind: kind, Method: string(request.Method), cause: cause}
	if request.URL != nil {
		e.URL = request.URL.String()
	}
	return e
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case IsCancelled(err):
		return metrics.OutcomeCancelled
	case errors.Is(err, ErrInvalidRequest):
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeTransport
}
