package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/health"
	"verigate/internal/providers"
	"verigate/internal/router"
)

type directory map[string]providers.Provider

func (d directory) Get(id string) (providers.Provider, bool) {
	p, ok := d[id]
	return p, ok
}

type DispatcherSuite struct {
	suite.Suite
	server  *httptest.Server
	handler http.HandlerFunc
	dir     directory
	d       *HTTPDispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handler(w, r)
	}))
	s.T().Cleanup(s.server.Close)

	s.dir = directory{
		"a": {ID: "a", Endpoint: s.server.URL + "/call", ProbeURL: s.server.URL + "/probe"},
		"b": {ID: "b", Endpoint: s.server.URL + "/call"},
		"c": {ID: "c"},
	}
	s.d = New(s.dir,
		WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *DispatcherSuite) TestCallForwardsPayloadAndHeaders() {
	var (
		gotBody    map[string]any
		gotHeaders http.Header
		gotMethod  string
	)
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeaders = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"match":true}`))
	}

	res := s.d.Call(context.Background(), "a", router.Request{
		ID:         "req-1",
		Capability: "citizen_lookup",
		SessionID:  "sess-1",
		Payload:    json.RawMessage(`{"national_id":"123"}`),
	})

	s.Require().True(res.Success)
	s.Equal(http.MethodPost, gotMethod)
	s.Equal("123", gotBody["national_id"])
	s.Equal("req-1", gotHeaders.Get(HeaderRequestID))
	s.Equal("sess-1", gotHeaders.Get(HeaderSessionID))
	s.Equal("citizen_lookup", gotHeaders.Get(HeaderCapability))
	s.JSONEq(`{"match":true}`, string(res.Body))
}

func (s *DispatcherSuite) TestCallClassifiesStatus() {
	cases := map[int]health.ErrorKind{
		http.StatusTooManyRequests:     health.ErrorRateLimited,
		http.StatusInternalServerError: health.ErrorServer,
		http.StatusGatewayTimeout:      health.ErrorTimeout,
		http.StatusBadRequest:          health.ErrorExplicit,
	}
	for status, want := range cases {
		s.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(status) }
		res := s.d.Call(context.Background(), "a", router.Request{Capability: "text"})
		s.False(res.Success, "status %d", status)
		s.Equal(want, res.ErrorKind, "status %d", status)
	}
}

func (s *DispatcherSuite) TestCallTimeout() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}

	res := s.d.Call(context.Background(), "a", router.Request{Capability: "text"})
	s.False(res.Success)
	s.Equal(health.ErrorTimeout, res.ErrorKind)
}

func (s *DispatcherSuite) TestCallUnreachable() {
	s.dir["d"] = providers.Provider{ID: "d", Endpoint: "http://127.0.0.1:1/call"}
	res := s.d.Call(context.Background(), "d", router.Request{Capability: "text"})
	s.False(res.Success)
	s.Equal(health.ErrorTransport, res.ErrorKind)
}

func (s *DispatcherSuite) TestCallWithoutEndpoint() {
	res := s.d.Call(context.Background(), "c", router.Request{Capability: "text"})
	s.False(res.Success)
	s.Equal(health.ErrorExplicit, res.ErrorKind)

	res = s.d.Call(context.Background(), "missing", router.Request{Capability: "text"})
	s.False(res.Success)
}

func (s *DispatcherSuite) TestCallIgnoresNonJSONBody() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) }
	res := s.d.Call(context.Background(), "a", router.Request{Capability: "text"})
	s.True(res.Success)
	s.Nil(res.Body)
}

func (s *DispatcherSuite) TestCallRejectsOversizedBody() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"blob":"` + strings.Repeat("x", maxBodyBytes) + `"}`))
	}
	res := s.d.Call(context.Background(), "a", router.Request{Capability: "text"})
	s.False(res.Success)
	s.Equal(health.ErrorExplicit, res.ErrorKind)
	s.Nil(res.Body)
}

func (s *DispatcherSuite) TestCallAcceptsBodyAtLimit() {
	body := `{"blob":"` + strings.Repeat("x", maxBodyBytes-len(`{"blob":""}`)) + `"}`
	s.handler = func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(body)) }
	res := s.d.Call(context.Background(), "a", router.Request{Capability: "text"})
	s.True(res.Success)
	s.Len(res.Body, maxBodyBytes)
}

func (s *DispatcherSuite) TestProbeUsesProbeURL() {
	var path, method string
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		w.WriteHeader(http.StatusNoContent)
	}

	out := s.d.Probe(context.Background(), "a")
	s.True(out.Success)
	s.Equal("/probe", path)
	s.Equal(http.MethodGet, method)

	out = s.d.Probe(context.Background(), "b")
	s.True(out.Success)
	s.Equal("/call", path, "falls back to the endpoint")
}

func (s *DispatcherSuite) TestProbeFailures() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }
	out := s.d.Probe(context.Background(), "a")
	s.False(out.Success)
	s.Equal(health.ErrorServer, out.ErrorKind)

	s.False(s.d.Probe(context.Background(), "c").Success)
	s.False(s.d.Probe(context.Background(), "missing").Success)
}

var (
	_ router.Dispatcher = (*HTTPDispatcher)(nil)
	_ health.Prober     = (*HTTPDispatcher)(nil)
)
