// Source: https://github.com/mandrigin/gin-spa
//
// MIT License
//
// Copyright (c) 2020 Igor Mandrigin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// NotFoundPage is served with a 404 status for unknown paths when the build contains it.
const NotFoundPage = "/404.html"

// cacheControlWriter sets Cache-Control from the request path before the
// first write and can force the status code of the response.
type cacheControlWriter struct {
	http.ResponseWriter
	path        string
	status      int
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	switch {
	case w.status == http.StatusNotFound:
		w.Header().Set("Cache-Control", "no-cache")
	case strings.HasPrefix(w.path, "/_astro/"), strings.HasPrefix(w.path, "/assets/"):
		// fingerprinted build output never changes
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	case strings.HasSuffix(w.path, ".html"), strings.HasSuffix(w.path, "/"):
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	default:
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
	}
	if w.status != 0 && statusCode == http.StatusOK {
		statusCode = w.status
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ServeStatic serves the prebuilt public site from siteDirectory. Unknown
// paths get the build's 404 page, or a plain 404 when there is none.
func ServeStatic(urlPrefix, siteDirectory string) gin.HandlerFunc {
	// directory listings stay disabled; a directory exists only with an index.html
	directory := static.LocalFile(siteDirectory, false)
	fileserver := http.FileServer(directory)
	if urlPrefix != "" {
		fileserver = http.StripPrefix(urlPrefix, fileserver)
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.String(http.StatusNotFound, "404 page not found")
			c.Abort()
			return
		}
		if directory.Exists(urlPrefix, path) {
			fileserver.ServeHTTP(&cacheControlWriter{ResponseWriter: c.Writer, path: path}, c.Request)
			c.Abort()
			return
		}
		if directory.Exists(urlPrefix, NotFoundPage) {
			c.Request.URL.Path = NotFoundPage
			fileserver.ServeHTTP(&cacheControlWriter{ResponseWriter: c.Writer, path: NotFoundPage, status: http.StatusNotFound}, c.Request)
			c.Abort()
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
		c.Abort()
	}
}
