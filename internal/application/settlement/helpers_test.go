package settlement

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/erp/settlement/internal/infrastructure/upstream"
)

const testCredential = "Basic dGVzdDp0ZXN0"

type cannedResponse struct {
	status int
	body   string
}

type recordedCall struct {
	method   string
	endpoint string
	body     string
	auth     string
}

// fakeWebservice stands in for the treasury webservice. Unknown endpoints
// answer 404.
type fakeWebservice struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	calls     []recordedCall
	server    *httptest.Server
}

func newFakeWebservice(t *testing.T) *fakeWebservice {
	t.Helper()
	ws := &fakeWebservice{responses: make(map[string]cannedResponse)}
	ws.server = httptest.NewServer(http.HandlerFunc(ws.serve))
	t.Cleanup(ws.server.Close)
	return ws
}

func (ws *fakeWebservice) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/ws")
	body, _ := io.ReadAll(r.Body)

	ws.mu.Lock()
	ws.calls = append(ws.calls, recordedCall{
		method:   r.Method,
		endpoint: endpoint,
		body:     string(body),
		auth:     r.Header.Get("Authorization"),
	})
	resp, ok := ws.responses[endpoint]
	ws.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = w.Write([]byte(resp.body))
}

func (ws *fakeWebservice) on(endpoint string, status int, body string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.responses[endpoint] = cannedResponse{status: status, body: body}
}

func (ws *fakeWebservice) endpoints() []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]string, len(ws.calls))
	for i, c := range ws.calls {
		out[i] = c.endpoint
	}
	return out
}

func (ws *fakeWebservice) lastCall() recordedCall {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.calls[len(ws.calls)-1]
}

func (ws *fakeWebservice) client() *upstream.Client {
	return upstream.NewClient(upstream.Config{
		BaseURL:        ws.server.URL,
		WebservicePath: "/ws",
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
	}, zap.NewNop())
}

func (ws *fakeWebservice) proxy() *ProxyService {
	return NewProxyService(ws.client(), nil, zap.NewNop())
}

// MockUpstream is a mock implementation of Upstream
type MockUpstream struct {
	mock.Mock
}

func (m *MockUpstream) GetWithTimeout(ctx context.Context, endpoint, credential string, timeout time.Duration) (json.RawMessage, error) {
	args := m.Called(ctx, endpoint, credential, timeout)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockUpstream) GetList(ctx context.Context, endpoint, credential string) ([]json.RawMessage, error) {
	args := m.Called(ctx, endpoint, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockUpstream) Post(ctx context.Context, endpoint, credential string, payload any) (json.RawMessage, error) {
	args := m.Called(ctx, endpoint, credential, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}
