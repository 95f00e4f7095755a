package main

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/pkg/testutil"
)

func newTestProvider(failureRate float64, roll float64) http.Handler {
	p := newProvider(config{
		Name:        "mock-a",
		FailureRate: failureRate,
		StatusCode:  http.StatusBadGateway,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.roll = func() float64 { return roll }
	return p.routes()
}

func TestVerify(t *testing.T) {
	t.Run("succeeds and echoes headers", func(t *testing.T) {
		h := newTestProvider(0, 0.5)
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/verify", `{}`)
		req.Header.Set("X-Request-ID", "req-1")
		req.Header.Set("X-Capability", "citizen_lookup")

		rr := testutil.DoRequest(h, req)
		testutil.AssertStatusOK(t, rr)
		body := *testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.Equal(t, "mock-a", body["provider"])
		assert.Equal(t, "req-1", body["request_id"])
		assert.Equal(t, "citizen_lookup", body["capability"])
	})

	t.Run("fails when the roll is under the failure rate", func(t *testing.T) {
		h := newTestProvider(0.3, 0.1)
		rr := testutil.DoRequest(h, testutil.NewRequestWithBody(t, http.MethodPost, "/verify", `{}`))
		testutil.AssertStatus(t, rr, http.StatusBadGateway)
	})
}

func TestFailureSwitch(t *testing.T) {
	h := newTestProvider(0, 0.9)

	testutil.AssertStatusOK(t, testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health")))

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodPut, "/admin/failing"))
	require.Equal(t, http.StatusNoContent, rr.Code)
	testutil.AssertStatus(t, testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health")), http.StatusServiceUnavailable)
	testutil.AssertStatus(t, testutil.DoRequest(h, testutil.NewRequestWithBody(t, http.MethodPost, "/verify", `{}`)), http.StatusBadGateway)

	testutil.DoRequest(h, testutil.NewRequest(t, http.MethodDelete, "/admin/failing"))
	testutil.AssertStatusOK(t, testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health")))
}
