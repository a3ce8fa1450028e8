package semantic

import (
	"bytes"
	"io"

	"browser-http/application/http"
	"browser-http/application/http/semantic/status"
)

type Response struct {
	Status status.Status
	// Version is zero when the host does not report the protocol.
	Version http.Version

	Headers Headers

	ContentLength int
	Body          io.ReadCloser

	// Request is the request this response answers.
	Request *Request
}

// NewBufferedResponse creates a response whose body is already in memory.
// Version is left zero, only the host knows which protocol was spoken.
func NewBufferedResponse(request *Request, st status.Status, headers Headers, body []byte) *Response {
	return &Response{
		Status:        st,
		Headers:       headers,
		ContentLength: len(body),
		Body:          io.NopCloser(bytes.NewReader(body)),
		Request:       request,
	}
}

func (r *Response) StatusCode() int { return r.Status.Code }

func (r *Response) ReasonPhrase() string { return r.Status.ReasonPhrase }
