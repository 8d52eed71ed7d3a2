package api

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/system"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapPage struct {
	Path       string
	Priority   string
	ChangeFreq string
}

// StaticPages are the hand written pages of the public site.
var StaticPages = []sitemapPage{
	{"", "1.0", "daily"},
	{"/servicios-forestales", "0.9", "weekly"},
	{"/desarrollo-personal", "0.9", "weekly"},
	{"/formacion", "0.8", "monthly"},
	{"/fundacion", "0.7", "monthly"},
	{"/contacto", "0.8", "monthly"},
	{"/blog", "0.9", "daily"},
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type PostLister interface {
	PublishedPosts(ctx context.Context, limit int) ([]store.Post, error)
}

// SitemapController serves /sitemap.xml from the static pages and every published post.
type SitemapController struct {
	posts   PostLister
	baseURL string
	now     func() time.Time
	log     *zap.SugaredLogger
}

func NewSitemapController(posts PostLister, baseURL string, log *zap.SugaredLogger) *SitemapController {
	return &SitemapController{posts: posts, baseURL: baseURL, now: time.Now, log: log.Named("sitemap")}
}

func (sc *SitemapController) BasePath() string { return "" }

func (sc *SitemapController) Handlers() []gin.HandlerFunc { return nil }

func (sc *SitemapController) Register(rg *gin.RouterGroup) error {
	rg.GET("/sitemap.xml", sc.sitemap)
	return nil
}

// Build returns the sitemap document. A failing post query still yields the static pages.
func (sc *SitemapController) Build(ctx context.Context) ([]byte, error) {
	now := sc.now().UTC().Format(time.RFC3339)
	set := urlSet{Xmlns: sitemapNamespace}
	for _, p := range StaticPages {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        sc.baseURL + p.Path,
			LastMod:    now,
			ChangeFreq: p.ChangeFreq,
			Priority:   p.Priority,
		})
	}

	posts, err := sc.posts.PublishedPosts(ctx, 0)
	if err != nil {
		sc.log.Errorw("Failed to fetch blog posts for sitemap", "error", err)
	}
	for _, post := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        sc.baseURL + "/blog/" + post.Slug,
			LastMod:    post.LastModified().UTC().Format(time.RFC3339),
			ChangeFreq: "monthly",
			Priority:   "0.7",
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func (sc *SitemapController) sitemap(c *gin.Context) {
	body, err := sc.Build(c.Request.Context())
	if err != nil {
		system.GetReqLogger(c, sc.log).Errorw("Failed to render sitemap", "error", err)
		c.String(http.StatusInternalServerError, MessageInternal)
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/xml", body)
}
