package registry

import (
	"crypto/tls"
	"net/http"
)

// userAgentTransport sets the User-Agent header on every request that does
// not carry one.
type userAgentTransport struct {
	Transport http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	if t.userAgent != "" && request.Header.Get("User-Agent") == "" {
		request = request.Clone(request.Context())
		request.Header.Set("User-Agent", t.userAgent)
	}

	return t.Transport.RoundTrip(request)
}

func newTransport(o Options) http.RoundTripper {
	base := o.Transport
	if base == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if o.Insecure {
			t.TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}

		base = t
	}

	return &userAgentTransport{
		Transport: o.Metrics.InstrumentRoundTripper(base),
		userAgent: o.UserAgent,
	}
}
