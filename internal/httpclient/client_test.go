package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tr1v3r/rctl/internal/monitoring"
)

func TestClientRecordsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	before := monitoring.GetMetrics().HTTPRequestsTotal
	resp, err := New(time.Second).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, before+1, monitoring.GetMetrics().HTTPRequestsTotal)
}

func TestLogTransportPassesErrors(t *testing.T) {
	boom := errors.New("boom")
	rt := LogTransport(roundTripFunc(func(*http.Request) (*http.Response, error) { return nil, boom }))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "http://192.0.2.1/ctl", nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, boom)
}
