package semantic

import (
	"io"
	"strings"
	"testing"

	"browser-http/application/http"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestNewRequest(t *testing.T) {
	req, err := NewRequest(MethodGet, "https://example.test/a?b=c", nil)
	require.NoError(t, err)

	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, "example.test", req.URL.Host)
	assert.Equal(t, http.Version11, req.Version)
	assert.Nil(t, req.Token)
	assert.Equal(t, "GET https://example.test/a?b=c", req.String())

	_, err = NewRequest(MethodGet, "http://[::1", nil)
	assert.Error(t, err)
}

func TestFinalize(t *testing.T) {
	t.Run("nil body", func(t *testing.T) {
		req, err := NewRequest(MethodGet, "/", nil)
		require.NoError(t, err)

		b, err := req.Finalize()
		require.NoError(t, err)
		assert.Nil(t, b)
	})

	t.Run("body is materialized and replayable", func(t *testing.T) {
		body := &closeTracker{Reader: strings.NewReader("hello")}
		req, err := NewRequest(MethodPost, "/", body)
		require.NoError(t, err)

		b, err := req.Finalize()
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), b)
		assert.True(t, body.closed)

		again, err := req.Finalize()
		require.NoError(t, err)
		assert.Equal(t, b, again)
	})

	t.Run("read error", func(t *testing.T) {
		req, err := NewRequest(MethodPost, "/", failingReader{})
		require.NoError(t, err)

		_, err = req.Finalize()
		assert.ErrorContains(t, err, "broken pipe")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Request {
		req, err := NewRequest(MethodGet, "https://example.test/", nil)
		require.NoError(t, err)
		return req
	}

	testcases := []struct {
		desc    string
		modify  func(r *Request)
		wantErr bool
	}{
		{
			desc:   "valid",
			modify: func(r *Request) {},
		},
		{
			desc:   "relative url",
			modify: func(r *Request) { r.URL.Scheme, r.URL.Host = "", "" },
		},
		{
			desc:    "invalid method",
			modify:  func(r *Request) { r.Method = "GE T" },
			wantErr: true,
		},
		{
			desc:    "missing url",
			modify:  func(r *Request) { r.URL = nil },
			wantErr: true,
		},
		{
			desc:    "unsupported scheme",
			modify:  func(r *Request) { r.URL.Scheme = "ftp" },
			wantErr: true,
		},
		{
			desc:    "header injection",
			modify:  func(r *Request) { r.Headers.Set("X-Foo", "a\r\nX-Bar: b") },
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			req := valid()
			tc.modify(req)

			err := req.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
