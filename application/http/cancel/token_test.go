package cancel

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type stubSlot struct {
	mu     sync.Mutex
	errs   []error
	closed bool
}

func (s *stubSlot) Reject(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.errs = append(s.errs, err)
	return true
}

type TokenTestSuite struct {
	suite.Suite

	token  *Token
	slot   *stubSlot
	aborts int
}

func TestTokenTestSuite(t *testing.T) {
	suite.Run(t, new(TokenTestSuite))
}

func (s *TokenTestSuite) SetupTest() {
	s.token = New()
	s.slot = &stubSlot{}
	s.aborts = 0
}

func (s *TokenTestSuite) abort() { s.aborts++ }

func (s *TokenTestSuite) TestCancelAfterRegister() {
	s.Require().NoError(s.token.Begin())
	s.Require().NoError(s.token.RegisterAbortHandle(s.abort, s.slot, "GET /"))

	s.token.RequestCancellation()
	s.token.RequestCancellation()

	s.Equal(1, s.aborts)
	s.True(s.token.CancellationRequested())
	// Settling is left to the primitive's own abort signal.
	s.Empty(s.slot.errs)
}

func (s *TokenTestSuite) TestCancelBeforeRegister() {
	s.Require().NoError(s.token.Begin())

	s.token.RequestCancellation()
	s.Zero(s.aborts)

	s.Require().NoError(s.token.RegisterAbortHandle(s.abort, s.slot, "GET https://example.test/a"))
	s.Equal(1, s.aborts)
	s.Require().Len(s.slot.errs, 1)
	s.ErrorIs(s.slot.errs[0], ErrAborted)
	s.Contains(s.slot.errs[0].Error(), "https://example.test/a")
}

func (s *TokenTestSuite) TestRegisterTwice() {
	s.Require().NoError(s.token.Begin())
	s.Require().NoError(s.token.RegisterAbortHandle(s.abort, s.slot, ""))

	err := s.token.RegisterAbortHandle(s.abort, s.slot, "")
	s.ErrorIs(err, ErrHandleRegistered)
}

func (s *TokenTestSuite) TestCancelAfterFinalize() {
	s.Require().NoError(s.token.Begin())
	s.Require().NoError(s.token.RegisterAbortHandle(s.abort, s.slot, ""))
	s.token.Finalize()

	s.token.RequestCancellation()

	s.Zero(s.aborts)
	s.False(s.token.CancellationRequested())
	s.True(s.token.Completed())
}

func (s *TokenTestSuite) TestReuseSharedToken() {
	s.Require().NoError(s.token.Begin())
	s.token.Finalize()
	s.False(s.token.Disposed())

	s.Require().NoError(s.token.Begin())
	s.False(s.token.Completed())
	s.NoError(s.token.RegisterAbortHandle(s.abort, s.slot, ""))
}

func (s *TokenTestSuite) TestCancellationSurvivesReuse() {
	s.Require().NoError(s.token.Begin())
	s.token.RequestCancellation()
	s.token.Finalize()

	s.Require().NoError(s.token.Begin())
	s.True(s.token.CancellationRequested())
}

func (s *TokenTestSuite) TestCancelBeforeBegin() {
	s.token.RequestCancellation()
	s.True(s.token.CancellationRequested())

	s.Require().NoError(s.token.Begin())
	s.Require().NoError(s.token.RegisterAbortHandle(s.abort, s.slot, ""))
	s.Equal(1, s.aborts)
	s.Len(s.slot.errs, 1)
}

func (s *TokenTestSuite) TestBeginTwice() {
	s.Require().NoError(s.token.Begin())
	s.ErrorIs(s.token.Begin(), ErrInUse)

	s.token.Finalize()
	s.NoError(s.token.Begin())
}

func (s *TokenTestSuite) TestFinalizeIdle() {
	s.token.Finalize()
	s.False(s.token.Completed())
	s.NoError(s.token.Begin())
}

func (s *TokenTestSuite) TestDisposable() {
	token := NewDisposable()
	s.True(token.AutoDispose())

	s.Require().NoError(token.Begin())
	token.Finalize()

	s.True(token.Disposed())
	s.ErrorIs(token.Begin(), ErrDisposed)
	s.ErrorIs(token.RegisterAbortHandle(s.abort, s.slot, ""), ErrDisposed)
}

func (s *TokenTestSuite) TestRegisterOnIdleToken() {
	err := s.token.RegisterAbortHandle(s.abort, s.slot, "")
	s.ErrorIs(err, ErrTokenNotBegun)
}

func (s *TokenTestSuite) TestRegisterOnCompletedToken() {
	s.Require().NoError(s.token.Begin())
	s.token.Finalize()

	err := s.token.RegisterAbortHandle(s.abort, s.slot, "")
	s.ErrorIs(err, ErrTokenNotBegun)
}

func (s *TokenTestSuite) TestReentrantHandle() {
	s.Require().NoError(s.token.Begin())

	// XHR fires abort listeners synchronously from abort().
	handle := func() {
		s.aborts++
		s.token.RequestCancellation()
		s.True(s.token.CancellationRequested())
	}
	s.Require().NoError(s.token.RegisterAbortHandle(handle, s.slot, ""))

	s.token.RequestCancellation()
	s.Equal(1, s.aborts)
}

func TestNilHandle(t *testing.T) {
	token := New()
	require.NoError(t, token.Begin())

	err := token.RegisterAbortHandle(nil, &stubSlot{}, "")
	assert.Error(t, err)
}

func TestCancelAfter(t *testing.T) {
	clk := clock.NewMock()
	token := New()

	CancelAfter(clk, time.Second, token)

	clk.Add(500 * time.Millisecond)
	assert.False(t, token.CancellationRequested())

	clk.Add(500 * time.Millisecond)
	assert.Eventually(t, token.CancellationRequested, time.Second, time.Millisecond)
}

func TestCancelAfterStopped(t *testing.T) {
	clk := clock.NewMock()
	token := New()

	stop := CancelAfter(clk, time.Second, token)
	assert.True(t, stop())

	clk.Add(2 * time.Second)
	assert.Never(t, token.CancellationRequested, 20*time.Millisecond, time.Millisecond)
}

func TestAbortedIsWrapped(t *testing.T) {
	err := errors.Wrap(ErrAborted, "GET /")
	assert.True(t, errors.Is(err, ErrAborted))
}
