package observability

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient returns an http.Client instrumented with otelhttp transport,
// for outbound calls whose spans should show up alongside sideseatd's own
// request handling (e.g. the pricing syncer's LiteLLM fetch).
func NewHTTPClient(base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	base.Transport = otelhttp.NewTransport(rt)
	return base
}

type headerRoundTripper struct {
	next    http.RoundTripper
	headers map[string]string
}

func (rt *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range rt.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return rt.next.RoundTrip(req)
}

// WithHeaders returns an http.Client that injects headers into every
// outgoing request that doesn't already set them.
func WithHeaders(base *http.Client, headers map[string]string) *http.Client {
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	base.Transport = &headerRoundTripper{next: next, headers: headers}
	return base
}
