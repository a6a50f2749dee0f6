package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// UserAgent identifies the store to the gateways and the carrier.
const UserAgent = "kuma-storefront/1.0"

// Vendor hosts that receive sentry trace headers. Anything else only gets
// a span.
var tracePropagationTargets = []string{
	"api.mercadopago.com",
	"api.stripe.com",
	"webservice.oca.com.ar",
}

// WrapRoundTripper traces each outbound call and stamps the store's
// User-Agent on requests that do not set one.
func WrapRoundTripper(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	traced := sentryhttpclient.NewSentryRoundTripper(
		base,
		sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
	)
	return userAgentTransport{next: traced}
}

// NewHTTPClient returns a traced client. A zero timeout leaves the request
// context as the only deadline.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: WrapRoundTripper(http.DefaultTransport),
		Timeout:   max(timeout, 0),
	}
}

type userAgentTransport struct {
	next http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", UserAgent)
	return t.next.RoundTrip(clone)
}
