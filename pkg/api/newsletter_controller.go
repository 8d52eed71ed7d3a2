package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/newsletter"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/system"
	"github.com/equitraccion/site/pkg/validation"
)

type SubscriberStore interface {
	SubscriberByEmail(ctx context.Context, email string) (*store.Subscriber, error)
	CreateSubscriber(ctx context.Context, sub *store.Subscriber) error
	SetSubscriberStatus(ctx context.Context, id uuid.UUID, status store.SubscriberStatus) error
}

// Welcomer sends the welcome mail to a new subscriber.
type Welcomer interface {
	SendWelcome(email string) error
}

// CampaignRunner builds and sends the monthly issue.
type CampaignRunner interface {
	Run(ctx context.Context) (newsletter.Report, error)
	Preview(ctx context.Context) (string, error)
}

const (
	messageAlreadySubscribed = "Este email ya está suscrito al newsletter"
	messageSubscribed        = "¡Gracias por suscribirte! Recibirás un email de confirmación pronto."
	messageResubscribed      = "¡Suscripción reactivada! Recibirás nuestro próximo boletín."
)

type subscribeRequest struct {
	Email    string `json:"email"`
	Source   string `json:"source"`
	Honeypot string `json:"honeypot"`
}

type unsubscribeRequest struct {
	Email string `json:"email"`
}

// NewsletterController serves /api/newsletter: the public subscription forms
// and the bearer protected trigger used by the monthly scheduler.
type NewsletterController struct {
	subscribers SubscriberStore
	welcome     Welcomer
	campaign    CampaignRunner
	cronToken   string
	admission   Admission
	validator   *validation.Validator
	auditor     audit.Auditor
	log         *zap.SugaredLogger
}

func NewNewsletterController(subscribers SubscriberStore, welcome Welcomer, campaign CampaignRunner,
	cronToken string, admission Admission, v *validation.Validator, auditor audit.Auditor, log *zap.SugaredLogger,
) *NewsletterController {
	return &NewsletterController{
		subscribers: subscribers,
		welcome:     welcome,
		campaign:    campaign,
		cronToken:   cronToken,
		admission:   admission,
		validator:   v,
		auditor:     auditor,
		log:         log.Named("newsletter-api"),
	}
}

func (nc *NewsletterController) BasePath() string { return "newsletter" }

func (nc *NewsletterController) Handlers() []gin.HandlerFunc { return nil }

func (nc *NewsletterController) Register(rg *gin.RouterGroup) error {
	rg.POST("/subscribe", nc.admission.Contact(), nc.subscribe)
	rg.POST("/unsubscribe", nc.admission.API(), nc.unsubscribe)
	rg.POST("/send", nc.requireCronToken, nc.send)
	rg.GET("/send", nc.requireCronToken, nc.preview)
	return nil
}

func (nc *NewsletterController) subscribe(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var req subscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Honeypot != "" {
		// bots get the same answer as people so they do not learn anything
		metrics.FormSubmissions.WithLabelValues("newsletter", "honeypot").Inc()
		log.Warnw("Bot detected via honeypot field", "form", "newsletter")
		emit(c, nc.auditor, audit.EventHoneypotTriggered, audit.Target{Kind: "form", Name: "newsletter"}, nil)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "¡Gracias por suscribirte!"})
		return
	}

	email := store.NormalizeEmail(req.Email)
	if err := nc.validator.Email(email); err != nil {
		metrics.FormSubmissions.WithLabelValues("newsletter", "invalid").Inc()
		apiresponses.RespondError(c, err, log)
		return
	}

	ctx := c.Request.Context()
	existing, err := nc.subscribers.SubscriberByEmail(ctx, email)
	switch {
	case err == nil && existing.Status.IsActive():
		metrics.FormSubmissions.WithLabelValues("newsletter", "duplicate").Inc()
		apiresponses.RespondError(c, &apiresponses.ValidationError{Message: messageAlreadySubscribed}, log)
		return
	case err == nil:
		if err := nc.subscribers.SetSubscriberStatus(ctx, existing.ID, store.SubscriberActive); err != nil {
			apiresponses.RespondError(c, upstream("reactivate subscription", err), log)
			return
		}
		nc.welcomed(c, email, audit.EventResubscribed, "resubscribed")
		c.JSON(http.StatusOK, gin.H{"success": true, "message": messageResubscribed})
		return
	case !errors.Is(err, store.ErrNotFound):
		apiresponses.RespondError(c, upstream("look up subscription", err), log)
		return
	}

	source := nc.validator.Text(req.Source)
	if source == "" {
		source = "website"
	}
	err = nc.subscribers.CreateSubscriber(ctx, &store.Subscriber{Email: email, Status: store.SubscriberActive, Source: source})
	if errors.Is(err, store.ErrConflict) {
		// lost a race against a concurrent request for the same address
		apiresponses.RespondError(c, &apiresponses.ValidationError{Message: messageAlreadySubscribed}, log)
		return
	}
	if err != nil {
		apiresponses.RespondError(c, upstream("create subscription", err), log)
		return
	}
	nc.welcomed(c, email, audit.EventSubscribed, "subscribed")
	c.JSON(http.StatusOK, gin.H{"success": true, "message": messageSubscribed})
}

// welcomed records a successful subscription and queues the welcome mail.
// Mail problems are logged and never fail the subscription.
func (nc *NewsletterController) welcomed(c *gin.Context, email string, event audit.EventType, outcome string) {
	log := system.GetReqLogger(c, nc.log)
	metrics.FormSubmissions.WithLabelValues("newsletter", outcome).Inc()
	log.Infow("Newsletter subscription", "outcome", outcome)
	emitAs(c, nc.auditor, email, event, audit.Target{Kind: "subscriber", Name: email}, nil)
	if nc.welcome == nil {
		return
	}
	if err := nc.welcome.SendWelcome(email); err != nil {
		log.Warnw("Failed to queue welcome mail", "error", err)
	}
}

func (nc *NewsletterController) unsubscribe(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	var req unsubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	email := store.NormalizeEmail(req.Email)
	if err := nc.validator.Email(email); err != nil {
		apiresponses.RespondError(c, err, log)
		return
	}

	ctx := c.Request.Context()
	sub, err := nc.subscribers.SubscriberByEmail(ctx, email)
	if err != nil {
		apiresponses.RespondError(c, storeError(err, "subscriber", email, "No se encontró una suscripción activa con este email"), log)
		return
	}
	if !sub.Status.IsActive() {
		c.JSON(http.StatusOK, gin.H{
			"success":             true,
			"message":             "Este email ya estaba dado de baja de la newsletter",
			"alreadyUnsubscribed": true,
		})
		return
	}
	if err := nc.subscribers.SetSubscriberStatus(ctx, sub.ID, store.SubscriberUnsubscribed); err != nil {
		apiresponses.RespondError(c, upstream("unsubscribe", err), log)
		return
	}
	log.Infow("Newsletter unsubscribe")
	emitAs(c, nc.auditor, email, audit.EventUnsubscribed, audit.Target{Kind: "subscriber", Name: email}, nil)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Te has dado de baja exitosamente de la newsletter"})
}

// requireCronToken accepts only "Authorization: Bearer <cronToken>".
func (nc *NewsletterController) requireCronToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || nc.cronToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(nc.cronToken)) != 1 {
		system.GetReqLogger(c, nc.log).Warnw("Rejected newsletter trigger", "hasAuthorization", header != "")
		emit(c, nc.auditor, audit.EventNewsletterForbidden, audit.Target{Kind: "newsletter"}, nil)
		apiresponses.RespondError(c, &apiresponses.AuthError{Reason: "cron token rejected", Message: MessageNotAuthorized}, nil)
		c.Abort()
		return
	}
	c.Next()
}

// SendWriteTimeout replaces the server write timeout for a newsletter run: a
// paced send to a large list takes far longer than any other request.
const SendWriteTimeout = time.Hour

func (nc *NewsletterController) send(c *gin.Context) {
	log := system.GetReqLogger(c, nc.log)

	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Now().Add(SendWriteTimeout)); err != nil {
		log.Debugw("Cannot extend write deadline for newsletter run", "error", err)
	}

	// a dropped scheduler connection must not abort a half-sent issue
	ctx := context.WithoutCancel(c.Request.Context())
	report, err := nc.campaign.Run(ctx)
	if newsletter.IsNoRecipients(err) {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "No hay suscriptores activos", "stats": report})
		return
	}
	if err != nil {
		apiresponses.RespondError(c, upstream("send newsletter", err), log)
		return
	}

	emit(c, nc.auditor, audit.EventNewsletterSent, audit.Target{Kind: "newsletter", Name: report.Month + " " + report.Year}, map[string]interface{}{
		"subscribers": report.Subscribers,
		"sent":        report.Sent,
		"failed":      report.Failed,
	})
	c.JSON(http.StatusOK, gin.H{
		"success": report.Sent > 0,
		"message": fmt.Sprintf("Newsletter enviado a %d de %d suscriptores", report.Sent, report.Subscribers),
		"stats":   report,
	})
}

func (nc *NewsletterController) preview(c *gin.Context) {
	if c.Query("preview") != "true" {
		c.String(http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	html, err := nc.campaign.Preview(c.Request.Context())
	if err != nil {
		system.GetReqLogger(c, nc.log).Errorw("Failed to render newsletter preview", "error", err)
		c.String(http.StatusInternalServerError, "Error generating preview")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
