package test

import (
	"sync"
	"time"

	"browser-http/transport"

	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// PrimitiveTestSuite checks the signal contract of a transport.Primitive.
//
// OKURL must answer 200 with the body "hello" and a text/plain content type.
// HangURL must send headers and then hang until the request is aborted.
// ErrorURL must fail at the network level.
//
// Every test checks that the primitive leaves no goroutine behind once released.
// Goroutines running when the suite starts (e.g. a test server) are ignored.
type PrimitiveTestSuite struct {
	suite.Suite

	New func() transport.Primitive

	OKURL, HangURL, ErrorURL string

	Timeout time.Duration

	p      transport.Primitive
	rec    *recorder
	ignore goleak.Option
}

type recorder struct {
	mu     sync.Mutex
	events []string

	headers  chan struct{}
	terminal chan struct{}
	once     sync.Once
}

func newRecorder(p transport.Primitive) *recorder {
	r := &recorder{
		headers:  make(chan struct{}, 1),
		terminal: make(chan struct{}),
	}

	p.OnHeadersReceived(func() {
		r.record("headers")
		select {
		case r.headers <- struct{}{}:
		default:
		}
	})
	p.OnLoad(func() { r.finish("load") })
	p.OnError(func() { r.finish("error") })
	p.OnAbort(func() { r.finish("abort") })

	return r
}

func (r *recorder) record(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) finish(ev string) {
	r.record(ev)
	r.once.Do(func() { close(r.terminal) })
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (s *PrimitiveTestSuite) SetupSuite() {
	s.ignore = goleak.IgnoreCurrent()
}

func (s *PrimitiveTestSuite) SetupTest() {
	if s.Timeout == 0 {
		s.Timeout = time.Second
	}
	s.p = s.New()
	s.rec = newRecorder(s.p)
}

func (s *PrimitiveTestSuite) TearDownTest() {
	defer goleak.VerifyNone(s.T(), s.ignore)
	if r, ok := s.p.(transport.Releaser); ok {
		r.Release()
	}
}

func (s *PrimitiveTestSuite) wait(ch <-chan struct{}, what string) {
	select {
	case <-ch:
	case <-time.After(s.Timeout):
		s.FailNow("timeout exceeded waiting for " + what)
	}
}

func (s *PrimitiveTestSuite) send(url string) {
	s.Require().NoError(s.p.Open("GET", url, true))
	s.p.SetResponseTypeBinary()
	s.Require().NoError(s.p.SetRequestHeader("Accept", "text/plain"))
	s.Require().NoError(s.p.Send(nil))
}

func (s *PrimitiveTestSuite) TestLoad() {
	s.send(s.OKURL)
	s.wait(s.rec.terminal, "load")

	s.Equal([]string{"headers", "load"}, s.rec.Events())
	s.Equal(200, s.p.Status())
	s.Equal("OK", s.p.StatusText())
	s.Contains(s.p.AllResponseHeaders(), "content-type: text/plain")
	s.Equal([]byte("hello"), s.p.Response())
}

func (s *PrimitiveTestSuite) TestAbortAfterHeaders() {
	s.send(s.HangURL)
	s.wait(s.rec.headers, "headers")

	s.p.Abort()
	s.wait(s.rec.terminal, "abort")
	s.p.Abort()

	s.Equal([]string{"headers", "abort"}, s.rec.Events())
	s.Nil(s.p.Response())
}

func (s *PrimitiveTestSuite) TestAbortAfterLoad() {
	s.send(s.OKURL)
	s.wait(s.rec.terminal, "load")

	s.p.Abort()

	s.Equal([]string{"headers", "load"}, s.rec.Events())
	s.Equal([]byte("hello"), s.p.Response())
}

func (s *PrimitiveTestSuite) TestError() {
	s.send(s.ErrorURL)
	s.wait(s.rec.terminal, "error")

	s.Equal([]string{"error"}, s.rec.Events())
	s.Equal(0, s.p.Status())
}

func (s *PrimitiveTestSuite) TestSendBeforeOpen() {
	s.ErrorIs(s.p.Send(nil), transport.ErrNotOpened)
	s.ErrorIs(s.p.SetRequestHeader("Accept", "*/*"), transport.ErrNotOpened)
}

func (s *PrimitiveTestSuite) TestOpenTwice() {
	s.Require().NoError(s.p.Open("GET", s.OKURL, true))
	s.ErrorIs(s.p.Open("GET", s.OKURL, true), transport.ErrAlreadyOpened)
}
