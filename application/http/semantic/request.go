package semantic

import (
	"bytes"
	"io"
	"net/url"

	"browser-http/application/http"
	"browser-http/application/http/cancel"
	"browser-http/application/util/rule"

	"github.com/pkg/errors"
)

type Request struct {
	Method  Method
	URL     *url.URL
	Version http.Version

	Headers Headers

	// Body is read in full before the request is handed to the host primitive.
	Body io.Reader

	// Token, if set, lets the caller cancel the request and reuse the
	// token across attempts. A single use token is created otherwise.
	Token *cancel.Token
}

func NewRequest(method Method, rawURL string, body io.Reader) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %q", rawURL)
	}

	return &Request{
		Method:  method,
		URL:     u,
		Version: http.Version11,
		Headers: NewHeaders(),
		Body:    body,
	}, nil
}

// Finalize materializes the whole body.
// The body is replaced by an in-memory copy, so finalizing again yields the same bytes.
func (r *Request) Finalize() ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	b, err := io.ReadAll(r.Body)
	if closer, ok := r.Body.(io.Closer); ok {
		// Don't care about close error when read failed.
		if cerr := closer.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "closing body")
		}
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}

	r.Body = bytes.NewReader(b)

	return b, nil
}

// Validate checks the request can be handed to a host primitive.
func (r *Request) Validate() error {
	if !rule.IsValidToken(string(r.Method)) {
		return errors.Errorf("method %q is not a valid token", r.Method)
	}

	if r.URL == nil {
		return errors.New("url is missing")
	}
	switch r.URL.Scheme {
	case "", "http", "https":
		// Relative references are resolved by the host against its base url.
	default:
		return errors.Errorf("scheme %q is not allowed. allowed schemes are: http, https", r.URL.Scheme)
	}

	if err := r.Headers.Validate(); err != nil {
		return errors.Wrap(err, "validating headers")
	}

	return nil
}

func (r *Request) String() string {
	if r.URL == nil {
		return string(r.Method)
	}
	return string(r.Method) + " " + r.URL.String()
}
