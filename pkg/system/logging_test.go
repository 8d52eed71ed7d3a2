package system

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGetReqLoggerFallbackWhenContextNil(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	require.Same(t, fallback, GetReqLogger(nil, fallback))
}

func TestGetReqLoggerFromContext(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	stored := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, stored)
	require.Same(t, stored, GetReqLogger(ctx, fallback))
}

func TestGetReqLoggerIgnoresInvalidTypes(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	fallback := zap.NewNop().Sugar()
	ctx.Set(ReqLoggerKey, "not-a-logger")
	require.Same(t, fallback, GetReqLogger(ctx, fallback))
}

func TestRequestLogger(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	base := zap.New(core).Sugar()

	r := gin.New()
	r.Use(RequestLogger(base))
	r.GET("/api/admin/stats", func(c *gin.Context) {
		GetReqLogger(c, nil).Infow("handled")
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	t.Run("assigns a new id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))

		id := w.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())

		entry := recorded.TakeAll()[0]
		assert.Equal(t, id, entry.ContextMap()["requestID"])
		assert.Equal(t, "GET", entry.ContextMap()["method"])
		assert.Equal(t, "/api/admin/stats", entry.ContextMap()["path"])
	})

	t.Run("keeps a valid incoming id", func(t *testing.T) {
		incoming := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req.Header.Set(HeaderRequestID, incoming)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, incoming, w.Header().Get(HeaderRequestID))
	})

	t.Run("replaces a garbage incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
		req.Header.Set(HeaderRequestID, "<script>")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Header().Get(HeaderRequestID))
	})
}

func TestEnrichReqLoggerWithAuthAddsFields(t *testing.T) {
	ctx, _ := gin.CreateTestContext(httptest.NewRecorder())
	ctx.Set(EmailKey, "admin@example.com")
	ctx.Set(RoleKey, "admin")

	core, recorded := observer.New(zap.DebugLevel)
	enriched := EnrichReqLoggerWithAuth(ctx, zap.New(core).Sugar())
	enriched.Infow("final-log")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "admin@example.com", fields["email"])
	assert.Equal(t, "admin", fields["role"])
	assert.Equal(t, "admin@example.com", SessionEmail(ctx))
}

func TestEnrichReqLoggerWithAuthHandlesNil(t *testing.T) {
	sugar := zap.NewNop().Sugar()
	require.Same(t, sugar, EnrichReqLoggerWithAuth(nil, sugar))
	require.Nil(t, EnrichReqLoggerWithAuth(&gin.Context{}, nil))
	assert.Empty(t, SessionEmail(nil))
}

func TestResourceFields(t *testing.T) {
	require.Equal(t, []interface{}{"kind", "post", "id", "p-1"}, ResourceFields("post", "p-1"))
	require.Equal(t, []interface{}{"kind", "post"}, ResourceFields("post", ""))
}
