package httpclient

import (
	"net/http"
	"time"

	"github.com/tr1v3r/pkg/log"

	"github.com/tr1v3r/rctl/internal/monitoring"
)

// New returns an HTTP client for description fetches and SOAP calls.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: LogTransport(http.DefaultTransport),
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// LogTransport logs and meters every request sent through next.
func LogTransport(next http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		ctx := r.Context()
		log.CtxDebug(ctx, "HTTP request method=%s url=%s user_agent=%s",
			r.Method, r.URL.String(), r.UserAgent())

		start := time.Now()
		resp, err := next.RoundTrip(r)
		duration := time.Since(start)

		// Record metrics
		monitoring.GetMetrics().RecordHTTPRequest(r.Method, duration)

		if err != nil {
			log.CtxDebug(ctx, "HTTP request failed method=%s url=%s duration=%s err=%v",
				r.Method, r.URL.String(), duration.String(), err)
			return nil, err
		}
		log.CtxDebug(ctx, "HTTP request completed method=%s url=%s status=%d duration=%s",
			r.Method, r.URL.String(), resp.StatusCode, duration.String())
		return resp, nil
	})
}
