package scripted

import (
	"testing"

	"browser-http/transport"
	"browser-http/transport/test"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func conformanceScript(p *Primitive) {
	switch p.URL() {
	case "scripted://ok":
		p.Succeed(200, "OK", []string{"content-type: text/plain"}, []byte("hello"))
	case "scripted://hang":
		p.Respond(200, "OK", []string{"content-type: text/plain"}, nil)
		p.Emit(HeadersReceived)
	case "scripted://error":
		p.Emit(Error)
	}
}

func TestPrimitive(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, &test.PrimitiveTestSuite{
		New: func() transport.Primitive {
			return New(conformanceScript)
		},
		OKURL:    "scripted://ok",
		HangURL:  "scripted://hang",
		ErrorURL: "scripted://error",
	})
}

func TestRecordsConfiguration(t *testing.T) {
	p := New(nil)

	require.NoError(t, p.Open("POST", "https://example.test/", true))
	p.SetWithCredentials(true)
	p.SetResponseTypeBinary()
	require.NoError(t, p.SetRequestHeader("A", "1"))
	require.NoError(t, p.SetRequestHeader("B", "2"))
	require.NoError(t, p.Send([]byte("body")))

	assert.Equal(t, "POST", p.Method())
	assert.Equal(t, "https://example.test/", p.URL())
	assert.True(t, p.Async())
	assert.True(t, p.WithCredentials())
	assert.True(t, p.Binary())
	assert.Equal(t, [][2]string{{"A", "1"}, {"B", "2"}}, p.RequestHeaders())
	assert.Equal(t, []byte("body"), p.Body())

	select {
	case <-p.Sent():
	default:
		t.Fatal("sent channel is not closed")
	}

	assert.ErrorIs(t, p.Send(nil), transport.ErrAlreadySent)
}

func TestQueuedEvents(t *testing.T) {
	p := New(nil)

	var events []Event
	p.OnHeadersReceived(func() { events = append(events, HeadersReceived) })
	p.OnLoad(func() { events = append(events, Load) })
	p.OnError(func() { events = append(events, Error) })

	require.NoError(t, p.Open("GET", "/", true))
	require.NoError(t, p.Send(nil))

	p.Enqueue(HeadersReceived, Load)
	p.Enqueue(Error)
	assert.Empty(t, events)

	assert.Equal(t, 3, p.Flush())
	assert.Equal(t, []Event{HeadersReceived, Load, Error}, events)
	assert.Equal(t, 0, p.Flush())
}

func TestAbort(t *testing.T) {
	t.Run("before send", func(t *testing.T) {
		p := New(nil)
		aborted := 0
		p.OnAbort(func() { aborted++ })

		p.Abort()
		assert.Equal(t, 0, aborted)
		assert.Equal(t, 1, p.Aborts())
	})

	t.Run("in flight", func(t *testing.T) {
		p := New(nil)
		aborted := 0
		p.OnAbort(func() { aborted++ })
		require.NoError(t, p.Open("GET", "/", true))
		require.NoError(t, p.Send(nil))

		p.Abort()
		p.Abort()
		assert.Equal(t, 1, aborted)
		assert.Equal(t, 2, p.Aborts())
	})
}

func TestFactory(t *testing.T) {
	f := NewFactory(nil)

	p1 := f.New()
	p2 := f.New()

	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []*Primitive{p1.(*Primitive), p2.(*Primitive)}, f.Primitives())
	assert.Same(t, p1, <-f.Created())
	assert.Same(t, p2, <-f.Created())
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "headers-received", HeadersReceived.String())
	assert.Equal(t, "abort", Abort.String())
	assert.Equal(t, "unknown", Event(42).String())
}
