package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/config"
	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/newsletter"
	"github.com/equitraccion/site/pkg/ratelimit"
	"github.com/equitraccion/site/pkg/session"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/validation"
)

const (
	testAdminEmail    = "admin@example.org"
	testAdminPassword = "s3cret-pass"
	testCronToken     = "cron-token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAuditor) Emit(_ context.Context, e *audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAuditor) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingAuditor) last() *audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

type fakeWelcomer struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeWelcomer) SendWelcome(email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, email)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	received []mail.ContactParams
}

func (f *fakeNotifier) NotifyContact(p mail.ContactParams, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, p)
	return nil
}

type fakeCampaign struct {
	report newsletter.Report
	err    error
	html   string
	runs   int
	delay  time.Duration
}

func (f *fakeCampaign) Run(context.Context) (newsletter.Report, error) {
	f.runs++
	time.Sleep(f.delay)
	return f.report, f.err
}

func (f *fakeCampaign) Preview(context.Context) (string, error) {
	return f.html, f.err
}

type testEnv struct {
	t        *testing.T
	cfg      config.Config
	server   *Server
	store    *store.Store
	gate     *SessionGate
	clock    *fakeClock
	auditor  *recordingAuditor
	welcome  *fakeWelcomer
	notifier *fakeNotifier
	campaign *fakeCampaign
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	sugar := log.Sugar()

	cfg := config.Config{
		Database: config.Database{Driver: store.DriverSQLite, DSN: ":memory:"},
		Session:  config.Session{Secret: "test-secret"},
		Admin:    config.Admin{Email: testAdminEmail},
	}
	cfg.Newsletter.CronToken = testCronToken
	for _, m := range mutate {
		m(&cfg)
	}
	cfg.Defaults()

	db, err := store.Open(store.Options{Driver: store.DriverSQLite, DSN: ":memory:", AutoMigrate: true})
	require.NoError(t, err)
	st := store.New(db, sugar)
	t.Cleanup(func() { _ = st.Close() })

	hash, err := session.HashPassword(testAdminPassword, 4)
	require.NoError(t, err)

	env := &testEnv{
		t:        t,
		cfg:      cfg,
		store:    st,
		clock:    &fakeClock{now: time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)},
		auditor:  &recordingAuditor{},
		welcome:  &fakeWelcomer{},
		notifier: &fakeNotifier{},
		campaign: &fakeCampaign{},
	}

	sessions, err := session.NewManager(session.Config{Secret: cfg.Session.Secret, Clock: env.clock.Now})
	require.NoError(t, err)
	env.gate = NewSessionGate(sessions, session.Cookie{Name: cfg.Session.CookieName, Secure: cfg.IsProduction()}, env.auditor, sugar)

	limits := ratelimit.NewStore(ratelimit.WithClock(env.clock.Now))
	admission := NewAdmission(ratelimit.NewPolicies(limits, 100, 15*time.Minute), env.auditor, sugar)
	v := validation.New()
	creds := session.NewAuthenticator(session.Credentials{Email: testAdminEmail, Password: hash}, sugar)

	env.gate.WithAdmission(admission)

	env.server = NewServer(log, cfg, true, env.gate).WithHealthCheck(st)
	require.NoError(t, env.server.RegisterAll([]APIController{
		NewAuthController(env.gate, creds, admission, v, env.auditor, sugar),
		NewNewsletterController(st, env.welcome, env.campaign, cfg.Newsletter.CronToken, admission, v, env.auditor, sugar),
		NewContactController(st, env.notifier, admission, v, env.auditor, sugar),
		NewAdminController(st, v, env.auditor, sugar),
	}))
	require.NoError(t, env.server.RegisterRoot([]APIController{
		NewPagesController(env.gate, st, cfg.Site.Name, sugar),
		NewSitemapController(st, cfg.Site.BaseURL, sugar),
	}))
	return env
}

type requestOption func(*http.Request)

func fromIP(ip string) requestOption {
	return func(r *http.Request) { r.Header.Set("X-Forwarded-For", ip) }
}

func withCookie(name, value string) requestOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func withBearer(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func (e *testEnv) do(method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf *bytes.Buffer
	switch b := body.(type) {
	case nil:
		buf = &bytes.Buffer{}
	case string:
		buf = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		buf = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

// asAdmin attaches a freshly issued session cookie.
func (e *testEnv) asAdmin() requestOption {
	e.t.Helper()
	token, err := e.gate.Sessions().Issue(testAdminEmail, session.RoleAdmin)
	require.NoError(e.t, err)
	return withCookie(e.cfg.Session.CookieName, token)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}
