package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitraccion/site/pkg/config"
)

func writeSite(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

func serveStatic(h gin.HandlerFunc, method, path string) *httptest.ResponseRecorder {
	r := gin.New()
	r.NoRoute(h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestServeStatic(t *testing.T) {
	dir := writeSite(t, map[string]string{
		"index.html":           "<h1>Inicio</h1>",
		"formacion/index.html": "<h1>Formación</h1>",
		"_astro/app.4f2a1c.js": "console.log(1)",
		"robots.txt":           "User-agent: *",
		NotFoundPage[1:]:       "<h1>No encontrado</h1>",
	})
	h := ServeStatic("/", dir)

	t.Run("index", func(t *testing.T) {
		w := serveStatic(h, http.MethodGet, "/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Inicio")
		assert.Equal(t, "no-cache, must-revalidate", w.Header().Get("Cache-Control"))
	})

	t.Run("nested page", func(t *testing.T) {
		w := serveStatic(h, http.MethodGet, "/formacion/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Formación")
	})

	t.Run("fingerprinted assets are immutable", func(t *testing.T) {
		w := serveStatic(h, http.MethodGet, "/_astro/app.4f2a1c.js")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Cache-Control"), "immutable")
	})

	t.Run("other files get a short cache", func(t *testing.T) {
		w := serveStatic(h, http.MethodGet, "/robots.txt")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "public, max-age=3600, must-revalidate", w.Header().Get("Cache-Control"))
	})

	t.Run("unknown path serves the 404 page", func(t *testing.T) {
		w := serveStatic(h, http.MethodGet, "/no/existe")
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "No encontrado")
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	})

	t.Run("writes are not served", func(t *testing.T) {
		w := serveStatic(h, http.MethodPost, "/robots.txt")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestServeStaticWithoutNotFoundPage(t *testing.T) {
	h := ServeStatic("/", writeSite(t, map[string]string{"index.html": "hi"}))
	w := serveStatic(h, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "404 page not found", w.Body.String())
}

func TestServerFallsBackToStaticSite(t *testing.T) {
	dir := writeSite(t, map[string]string{"index.html": "<h1>Inicio</h1>", "404.html": "perdido"})
	env := newTestEnv(t, func(c *config.Config) { c.Server.StaticDir = dir })

	w := env.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Inicio")

	w = env.do(http.MethodGet, "/blog/inexistente", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "perdido")

	// unknown API paths stay JSON even with a static site
	w = env.do(http.MethodGet, "/api/inexistente", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}
