package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/woodland-analytics/woodland-dash/internal/application/container"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/backend"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/manager"
	schema "github.com/woodland-analytics/woodland-dash/internal/infrastructure/database"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/database"
	eventsrepo "github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/events"
)

const (
	testOrigin   = "http://localhost:5173"
	testPassword = "correct horse"
)

type testEnv struct {
	router      *gin.Engine
	container   *container.Container
	lastQuery   atomic.Value
	metadataOff bool
}

// fakeAnalyticsAPI mimics the analytics backend under /api.
func (env *testEnv) fakeAnalyticsAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/filters":
		if env.metadataOff {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"warming up"}`))
			return
		}
		_, _ = w.Write([]byte(`{"channels":["online","retail"],"stores":["store-1","store-2"],
			"skus":["sku-1","sku-2"],"products":["prod-1","prod-2"],"categories":["shoes"],
			"rawMaterials":["suede","leather"]}`))
	case "/api/filters/rawMaterials":
		if r.URL.Query().Get("product") == "prod-1" {
			_, _ = w.Write([]byte(`{"rawMaterials":["suede","leather"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"rawMaterials":[]}`))
	case "/api/filters/products":
		_, _ = w.Write([]byte(`{"products":["prod-1"]}`))
	case "/api/consumption/dashboard":
		env.lastQuery.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"kpis":{"totalForecastedRMDemand":{"value":120,"trend":4.5,"direction":"up"}}}`))
	case "/api/sales/dashboard":
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"sales warehouse offline"}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestEnv(t *testing.T, metadataOff bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{metadataOff: metadataOff}
	api := httptest.NewServer(http.HandlerFunc(env.fakeAnalyticsAPI))
	t.Cleanup(api.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := logging.NewDiscardLogger()
	perf := performance.NewTracker(nil, nil)

	db, err := database.OpenMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, schema.NewTableCreator().CreateSchema(db.DB))

	broadcaster := messaging.NewSessionBroadcaster(time.Hour, logger)
	go broadcaster.Run(ctx)

	c, err := container.NewContainer(container.Dependencies{
		Logger:        logger,
		PerfTracker:   perf,
		CacheManager:  manager.NewManager(100, logger),
		BackendClient: backend.NewClient(api.URL+"/api", 2*time.Second, logger, perf),
		Broadcaster:   broadcaster,
		AuditDB:       db,
		AuditRepo:     eventsrepo.NewSQLFilterEventRepository(db, logger),
	}, container.Settings{
		RefreshFor:       50 * time.Millisecond,
		DashboardTimeout: 2 * time.Second,
		JWTSecret:        "test-secret",
		TokenTTL:         time.Hour,
		SysopPassword:    testPassword,
	})
	require.NoError(t, err)

	if !metadataOff {
		require.NoError(t, c.MetadataService.Load(ctx))
	}
	go c.FilterSessionService.RunAuditWriter(ctx)

	env.container = c
	env.router = SetupRoutes(c, []string{testOrigin})
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createSession(t *testing.T, dashboard string) (string, string) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/sessions", "", gin.H{"dashboard": dashboard})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.Bytes()
	return gjson.GetBytes(body, "sessionId").String(), gjson.GetBytes(body, "token").String()
}

func TestHealthAndMetadata(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", gjson.Get(rec.Body.String(), "status").String())
	assert.True(t, gjson.Get(rec.Body.String(), "metadata.loaded").Bool())

	rec = env.do(t, http.MethodGet, "/api/v1/filters", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `["sku-1","sku-2"]`, gjson.Get(rec.Body.String(), "skus").Raw)
}

func TestMetadataLoadingState(t *testing.T) {
	env := newTestEnv(t, true)
	require.Error(t, env.container.MetadataService.Load(context.Background()))

	rec := env.do(t, http.MethodGet, "/api/v1/filters", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading", gjson.Get(rec.Body.String(), "status").String())

	rec = env.do(t, http.MethodGet, "/api/v1/filters/options/rawMaterials?value=prod-1", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "loading", gjson.Get(rec.Body.String(), "status").String())

	rec = env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loading", gjson.Get(rec.Body.String(), "status").String())

	// Sessions still start, with filters disabled.
	id, token := env.createSession(t, "consumption")
	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "disabled").Bool())
}

func TestSessionRequiresMatchingToken(t *testing.T) {
	env := newTestEnv(t, false)
	id, token := env.createSession(t, "consumption")
	otherID, otherToken := env.createSession(t, "sales")

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"no token", "/api/v1/sessions/" + id, "", http.StatusUnauthorized},
		{"garbage token", "/api/v1/sessions/" + id, "not-a-jwt", http.StatusUnauthorized},
		{"token of another session", "/api/v1/sessions/" + id, otherToken, http.StatusUnauthorized},
		{"own token", "/api/v1/sessions/" + id, token, http.StatusOK},
		{"other session own token", "/api/v1/sessions/" + otherID, otherToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, tc.token, nil)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSetFilterResolvesDependentOptions(t *testing.T) {
	env := newTestEnv(t, false)
	id, token := env.createSession(t, "consumption")

	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/product?wait=true", token, gin.H{"value": "prod-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "prod-1", gjson.Get(body, "filters.product").String())
	assert.Equal(t, `["all","suede","leather"]`, gjson.Get(body, "options.rawMaterial").Raw)
	assert.False(t, gjson.Get(body, "pending.rawMaterial").Bool())

	rec = env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/colour", token, gin.H{"value": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/dateRange", token, gin.H{"value": "next-decade"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, `["next-7","next-30"]`, gjson.Get(rec.Body.String(), "allowed").Raw)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reset?wait=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "all", gjson.Get(rec.Body.String(), "filters.product").String())
}

func TestRefreshAndSessionDashboard(t *testing.T) {
	env := newTestEnv(t, false)
	id, token := env.createSession(t, "consumption")

	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/product?wait=true", token, gin.H{"value": "prod-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/refresh", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "isRefreshing").Bool())

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 120.0, gjson.Get(rec.Body.String(), "data.kpis.totalForecastedRMDemand.value").Float())

	query, _ := env.lastQuery.Load().(string)
	assert.Contains(t, query, "product=prod-1")
	assert.NotContains(t, query, "rawMaterial=")
}

func TestStatelessDashboards(t *testing.T) {
	env := newTestEnv(t, false)

	rec := env.do(t, http.MethodGet, "/api/v1/dashboards/consumption?channel=online", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", gjson.Get(rec.Body.String(), "filters.channel").String())

	// Backend failures degrade to the empty payload.
	rec = env.do(t, http.MethodGet, "/api/v1/dashboards/sales", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "data").Exists())

	rec = env.do(t, http.MethodGet, "/api/v1/dashboards/inventory", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/dashboards/consumption?rollingWindow=99", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScopedOptionLookups(t *testing.T) {
	env := newTestEnv(t, false)

	cases := []struct {
		name     string
		path     string
		want     int
		options  string
		fellBack bool
	}{
		{"raw materials by product", "/api/v1/filters/options/rawMaterials?value=prod-1", http.StatusOK, `["all","suede","leather"]`, false},
		{"wire field name", "/api/v1/filters/options/rawMaterial?value=prod-1", http.StatusOK, `["all","suede","leather"]`, false},
		{"products by raw material", "/api/v1/filters/options/products?value=suede", http.StatusOK, `["all","prod-1"]`, false},
		{"wildcard uses metadata", "/api/v1/filters/options/rawMaterials", http.StatusOK, `["all","suede","leather"]`, false},
		{"failed lookup falls back", "/api/v1/filters/options/skus?value=shoes", http.StatusOK, `["all","sku-1","sku-2"]`, true},
		{"no scoped lookup", "/api/v1/filters/options/channels?value=online", http.StatusBadRequest, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, "", nil)
			require.Equal(t, tc.want, rec.Code, rec.Body.String())
			if tc.want != http.StatusOK {
				return
			}
			assert.Equal(t, tc.options, gjson.Get(rec.Body.String(), "options").Raw)
			assert.Equal(t, tc.fellBack, gjson.Get(rec.Body.String(), "fellBack").Bool())
		})
	}
}

func TestAuditTrailAndDelete(t *testing.T) {
	env := newTestEnv(t, false)
	id, token := env.createSession(t, "consumption")

	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/channel", token, gin.H{"value": "online"})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/events", token, nil)
		return rec.Code == http.StatusOK && gjson.Get(rec.Body.String(), "counts.user").Int() == 1
	}, 2*time.Second, 20*time.Millisecond)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/events?limit=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSysopEndpoints(t *testing.T) {
	env := newTestEnv(t, false)
	env.createSession(t, "sales")

	rec := env.do(t, http.MethodPost, "/api/sysop/login", "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sysop/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/sysop/login", "", gin.H{"password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	token := gjson.Get(rec.Body.String(), "token").String()
	require.NotEmpty(t, token)

	// A session handle is not a sysop token.
	_, sessionToken := env.createSession(t, "consumption")
	rec = env.do(t, http.MethodGet, "/api/sysop/sessions", sessionToken, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sysop/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), gjson.Get(rec.Body.String(), "liveSessions").Int())
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "byDashboard.sales").Int())

	rec = env.do(t, http.MethodPost, "/api/sysop/logs/levels", token, gin.H{"channel": "filters", "level": "DEBUG"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DEBUG", gjson.Get(rec.Body.String(), "levels.filters").String())

	rec = env.do(t, http.MethodPost, "/api/sysop/logs/levels", token, gin.H{"channel": "filters", "level": "LOUD"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/sysop/performance", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "operations").IsArray())
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sessions", nil)
	req.Header.Set("Origin", testOrigin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocketStreamsSnapshots(t *testing.T) {
	env := newTestEnv(t, false)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	id, token := env.createSession(t, "consumption")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + id + "/ws?token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readMessage := func() string {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		return string(data)
	}

	first := readMessage()
	assert.Equal(t, messaging.MessageSnapshot, gjson.Get(first, "type").String())
	assert.Equal(t, "all", gjson.Get(first, "payload.filters.product").String())

	assert.Eventually(t, func() bool {
		return env.container.Broadcaster.ClientCount(id) == 1
	}, time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/filters/product?wait=true", token, gin.H{"value": "prod-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	for {
		msg := readMessage()
		if gjson.Get(msg, "payload.options.rawMaterial.#").Int() == 3 {
			assert.Equal(t, "prod-1", gjson.Get(msg, "payload.filters.product").String())
			break
		}
	}

	_, _, err = websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/sessions/"+id+"/ws?token=bogus", nil)
	assert.Error(t, err)
}
