package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "leftmost forwarded-for entry",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			want:    "1.2.3.4",
		},
		{
			name:    "forwarded-for wins over real ip",
			headers: map[string]string{"X-Forwarded-For": " 10.0.0.1 ", "X-Real-IP": "10.0.0.2"},
			want:    "10.0.0.1",
		},
		{
			name:    "real ip fallback",
			headers: map[string]string{"X-Real-IP": "10.0.0.2"},
			want:    "10.0.0.2",
		},
		{
			name:    "empty forwarded-for entry falls through",
			headers: map[string]string{"X-Forwarded-For": " , 5.6.7.8", "X-Real-IP": "10.0.0.3"},
			want:    "10.0.0.3",
		},
		{
			name: "no headers",
			want: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}

	assert.Equal(t, UnknownClient, ClientIP(nil))
}

func newTestRouter(l *Limiter, hooks ...DenyHook) *gin.Engine {
	r := gin.New()
	r.POST("/api/auth/login", l.Middleware(zap.NewNop().Sugar(), hooks...), func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	return r
}

func doRequest(r http.Handler, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	t.Run("sixth login attempt is denied with retry metadata", func(t *testing.T) {
		clock := newFakeClock()
		s := NewStore(WithClock(clock.Now))
		r := newTestRouter(NewLimiter(s, LoginPolicy()))

		for i := 0; i < 5; i++ {
			w := doRequest(r, "1.2.3.4")
			require.Equal(t, http.StatusOK, w.Code, "request %d should succeed", i)
			assert.Equal(t, strconv.Itoa(4-i), w.Header().Get("X-RateLimit-Remaining"))
		}

		clock.Advance(time.Minute)
		w := doRequest(r, "1.2.3.4")
		require.Equal(t, http.StatusTooManyRequests, w.Code)

		retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.Equal(t, 14*60, retryAfter)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, false, body["success"])
		assert.EqualValues(t, 0, body["remaining"])
		assert.Equal(t, w.Header().Get("X-RateLimit-Reset"), body["resetTime"])
		_, err = time.Parse(time.RFC3339, body["resetTime"].(string))
		assert.NoError(t, err)
	})

	t.Run("different clients have separate quotas", func(t *testing.T) {
		s := NewStore()
		r := newTestRouter(NewLimiter(s, ContactPolicy()))

		for i := 0; i < 3; i++ {
			doRequest(r, "1.1.1.1")
		}
		assert.Equal(t, http.StatusTooManyRequests, doRequest(r, "1.1.1.1").Code)
		assert.Equal(t, http.StatusOK, doRequest(r, "2.2.2.2").Code)
	})

	t.Run("clients without proxy headers share the unknown bucket", func(t *testing.T) {
		s := NewStore()
		r := newTestRouter(NewLimiter(s, ContactPolicy()))

		for i := 0; i < 3; i++ {
			doRequest(r, "")
		}
		assert.Equal(t, http.StatusTooManyRequests, doRequest(r, "").Code)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("deny hooks see the rejected identifier", func(t *testing.T) {
		s := NewStore()
		var denied []string
		hook := func(_ *gin.Context, identifier string, res Result) {
			assert.False(t, res.Allowed)
			denied = append(denied, identifier)
		}
		r := newTestRouter(NewLimiter(s, Policy{Prefix: "t", MaxRequests: 1, Window: time.Minute}), hook)

		doRequest(r, "3.3.3.3")
		doRequest(r, "3.3.3.3")
		assert.Equal(t, []string{"3.3.3.3"}, denied)
	})
}
