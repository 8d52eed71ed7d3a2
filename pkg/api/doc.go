// Package api implements the HTTP server (Gin-based) of the site: the public
// form endpoints, the bearer protected newsletter trigger, the session gated
// back office API and pages, the sitemap, and static asset serving.
package api
