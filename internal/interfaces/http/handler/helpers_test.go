package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appsettlement "github.com/erp/settlement/internal/application/settlement"
	"github.com/erp/settlement/internal/domain/settlement"
	"github.com/erp/settlement/internal/infrastructure/session"
	"github.com/erp/settlement/internal/infrastructure/upstream"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
)

const testCookie = "settlement_session"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// webservice is a canned treasury webservice. Unknown endpoints answer 404.
type webservice struct {
	mu        sync.Mutex
	responses map[string]string
	statuses  map[string]int
	bodies    map[string]string
	calls     []string
	server    *httptest.Server
}

func newWebservice(t *testing.T) *webservice {
	t.Helper()
	ws := &webservice{
		responses: make(map[string]string),
		statuses:  make(map[string]int),
		bodies:    make(map[string]string),
	}
	ws.server = httptest.NewServer(http.HandlerFunc(ws.serve))
	t.Cleanup(ws.server.Close)
	return ws
}

func (ws *webservice) serve(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/ws")
	body, _ := io.ReadAll(r.Body)

	ws.mu.Lock()
	ws.calls = append(ws.calls, endpoint)
	ws.bodies[endpoint] = string(body)
	resp, ok := ws.responses[endpoint]
	status := ws.statuses[endpoint]
	ws.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (ws *webservice) on(endpoint string, status int, body string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.responses[endpoint] = body
	ws.statuses[endpoint] = status
}

func (ws *webservice) called(endpoint string) int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	n := 0
	for _, c := range ws.calls {
		if c == endpoint {
			n++
		}
	}
	return n
}

func (ws *webservice) body(endpoint string) string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.bodies[endpoint]
}

// testApp wires the real services to a fake webservice.
type testApp struct {
	ws       *webservice
	sessions *session.Manager
	engine   *gin.Engine
}

type appOptions struct {
	editDisabled bool
	staticDir    string
}

func newTestApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()
	ws := newWebservice(t)
	ws.on("/getProducts", http.StatusOK, `[]`)

	sessions, err := session.NewManager(session.NewMemoryStore(), testSecret, time.Hour)
	require.NoError(t, err)

	client := upstream.NewClient(upstream.Config{
		BaseURL:        ws.server.URL,
		WebservicePath: "/ws",
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
	}, zap.NewNop())

	proxy := appsettlement.NewProxyService(client, nil, zap.NewNop())
	dashboard := appsettlement.NewDashboardService(proxy, appsettlement.DashboardConfig{
		AllocationLimit: 20,
		EditEnabled:     !opts.editDisabled,
		Policy:          settlement.DefaultAllocationPolicy(),
	}, zap.NewNop())
	auth := appsettlement.NewAuthService(client, sessions, appsettlement.AuthServiceConfig{
		ProbeEndpoint: "/getProducts",
		Timeout:       time.Second,
	}, nil, zap.NewNop())

	authH := NewAuthHandler(auth, CookieSettings{Name: testCookie, SameSite: http.SameSiteLaxMode})
	settlementH := NewSettlementHandler(proxy)
	dashboardH := NewDashboardHandler(dashboard)
	pagesH := NewPageHandler(sessions, testCookie, opts.staticDir)
	configH := NewConfigHandler(appsettlement.ClientConfig{PortalURL: ws.server.URL, EditEnabled: !opts.editDisabled})
	systemH := NewSystemHandler("settlement-dashboard", "test", sessions)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.GET("/health", systemH.Health)
	engine.GET("/ready", systemH.Ready)
	engine.GET("/api/config", configH.GetConfig)
	engine.GET("/login", pagesH.Login)
	engine.POST("/auth/login", authH.Login)

	gated := engine.Group("", middleware.RequireSession(middleware.SessionConfig{
		Sessions:   sessions,
		CookieName: testCookie,
	}))
	edit := middleware.RequireEdit(!opts.editDisabled)
	gated.GET("/", pagesH.Index)
	gated.GET("/auth/user", authH.CurrentUser)
	gated.POST("/auth/logout", authH.Logout)
	gated.GET("/api/system/info", systemH.GetSystemInfo)
	gated.GET("/api/invoices", settlementH.ListInvoices)
	gated.GET("/api/invoices/open", settlementH.ListOpenInvoices)
	gated.GET("/api/invoices/unpaid", settlementH.ListUnpaidInvoices)
	gated.GET("/api/payments", settlementH.ListPayments)
	gated.GET("/api/payments/open", settlementH.ListOpenPayments)
	gated.GET("/api/payments/unallocated", settlementH.ListUnallocatedPayments)
	gated.GET("/api/allocations", settlementH.ListAllocations)
	gated.POST("/api/allocations", edit, settlementH.CreateAllocation)
	gated.DELETE("/api/allocations/:id", edit, settlementH.DeleteAllocation)
	gated.GET("/api/counterparties", settlementH.ListCounterparties)
	gated.GET("/api/companies", settlementH.ListCompanies)
	gated.POST("/api/dashboard/view", dashboardH.View)
	gated.POST("/api/dashboard/allocate", edit, dashboardH.Allocate)

	return &testApp{ws: ws, sessions: sessions, engine: engine}
}

// login opens a session directly and returns its cookie.
func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := a.sessions.Create(context.Background(), "treasury", upstream.BasicAuth("treasury", "secret"))
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: token}
}

func (a *testApp) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// decodeData unmarshals the data field of the envelope into out.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return envelope.Response
}
