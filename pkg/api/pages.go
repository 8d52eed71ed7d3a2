package api

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/system"
)

//go:embed pages/*.html
var pageFS embed.FS

var (
	// the first file names the template, the layout only contributes definitions
	loginPage     = template.Must(template.ParseFS(pageFS, "pages/login.html", "pages/layout.html"))
	dashboardPage = template.Must(template.ParseFS(pageFS, "pages/dashboard.html", "pages/layout.html"))
)

const recentMessages = 10

type DashboardStore interface {
	Stats(ctx context.Context) store.Stats
	ListMessages(ctx context.Context, status store.MessageStatus) ([]store.ContactSubmission, error)
}

type pageData struct {
	Title    string
	SiteName string
	Email    string
	Stats    store.Stats
	Messages []store.ContactSubmission
}

// PagesController renders the back office HTML pages below /admin.
// The session gate has already run; only the login page is reachable without a session.
type PagesController struct {
	gate     *SessionGate
	store    DashboardStore
	siteName string
	log      *zap.SugaredLogger
}

func NewPagesController(gate *SessionGate, s DashboardStore, siteName string, log *zap.SugaredLogger) *PagesController {
	return &PagesController{gate: gate, store: s, siteName: siteName, log: log.Named("pages")}
}

func (pc *PagesController) BasePath() string { return "admin" }

func (pc *PagesController) Handlers() []gin.HandlerFunc { return nil }

func (pc *PagesController) Register(rg *gin.RouterGroup) error {
	rg.GET("/login", pc.login)
	rg.GET("", pc.dashboard)
	rg.GET("/dashboard", pc.dashboard)
	return nil
}

// login always renders, signed in or not; a valid session only adds a link to the panel.
func (pc *PagesController) login(c *gin.Context) {
	data := pageData{Title: "Acceso"}
	if claims, ok := pc.gate.Claims(c); ok {
		data.Email = claims.Email
	}
	pc.render(c, loginPage, data)
}

func (pc *PagesController) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	data := pageData{
		Title: "Panel",
		Email: system.SessionEmail(c),
		Stats: pc.store.Stats(ctx),
	}
	msgs, err := pc.store.ListMessages(ctx, "")
	if err != nil {
		system.GetReqLogger(c, pc.log).Errorw("Failed to list messages for dashboard", "error", err)
	}
	if len(msgs) > recentMessages {
		msgs = msgs[:recentMessages]
	}
	data.Messages = msgs
	pc.render(c, dashboardPage, data)
}

func (pc *PagesController) render(c *gin.Context, tpl *template.Template, data pageData) {
	data.SiteName = pc.siteName
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		system.GetReqLogger(c, pc.log).Errorw("Failed to render page", "page", data.Title, "error", err)
		c.String(http.StatusInternalServerError, MessageInternal)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
