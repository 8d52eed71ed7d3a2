package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/system"
	"github.com/equitraccion/site/pkg/validation"
)

type MessageStore interface {
	CreateMessage(ctx context.Context, m *store.ContactSubmission) error
}

// ContactNotifier forwards a submission to the site owner.
type ContactNotifier interface {
	NotifyContact(p mail.ContactParams, receivedAt time.Time) error
}

type contactRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"max=30"`
	Subject  string `json:"subject" validate:"required,max=200"`
	Message  string `json:"message" validate:"required,max=5000"`
	Category string `json:"category" validate:"required,oneof=forestales desarrollo formacion general"`
	Honeypot string `json:"honeypot"`
}

// ContactController serves POST /api/contact.
type ContactController struct {
	messages  MessageStore
	notifier  ContactNotifier
	admission Admission
	validator *validation.Validator
	auditor   audit.Auditor
	log       *zap.SugaredLogger
}

func NewContactController(messages MessageStore, notifier ContactNotifier, admission Admission,
	v *validation.Validator, auditor audit.Auditor, log *zap.SugaredLogger,
) *ContactController {
	return &ContactController{
		messages:  messages,
		notifier:  notifier,
		admission: admission,
		validator: v,
		auditor:   auditor,
		log:       log.Named("contact-api"),
	}
}

func (cc *ContactController) BasePath() string { return "contact" }

func (cc *ContactController) Handlers() []gin.HandlerFunc {
	return []gin.HandlerFunc{cc.admission.Contact()}
}

func (cc *ContactController) Register(rg *gin.RouterGroup) error {
	rg.POST("", cc.submit)
	return nil
}

func (cc *ContactController) submit(c *gin.Context) {
	log := system.GetReqLogger(c, cc.log)

	var req contactRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Honeypot != "" {
		metrics.FormSubmissions.WithLabelValues("contact", "honeypot").Inc()
		log.Warnw("Bot detected via honeypot field", "form", "contact")
		emit(c, cc.auditor, audit.EventHoneypotTriggered, audit.Target{Kind: "form", Name: "contact"}, nil)
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Formulario enviado correctamente"})
		return
	}

	req.Email = store.NormalizeEmail(req.Email)
	if err := cc.validator.Struct(req); err != nil {
		metrics.FormSubmissions.WithLabelValues("contact", "invalid").Inc()
		apiresponses.RespondError(c, err, log)
		return
	}
	msg := &store.ContactSubmission{
		Name:     cc.validator.Text(req.Name),
		Email:    req.Email,
		Phone:    cc.validator.Text(req.Phone),
		Subject:  cc.validator.Text(req.Subject),
		Message:  cc.validator.Text(req.Message),
		Category: req.Category,
		Status:   store.MessageNew,
	}
	// a field made only of markup is empty once sanitized
	if msg.Name == "" || msg.Subject == "" || msg.Message == "" {
		metrics.FormSubmissions.WithLabelValues("contact", "invalid").Inc()
		apiresponses.RespondError(c, apiresponses.NewValidationError("Faltan campos obligatorios"), log)
		return
	}

	if err := cc.messages.CreateMessage(c.Request.Context(), msg); err != nil {
		apiresponses.RespondError(c, upstream("store contact submission", err), log)
		return
	}
	metrics.FormSubmissions.WithLabelValues("contact", "accepted").Inc()
	log.Infow("Contact form received", system.ResourceFields("message", msg.ID.String())...)
	emitAs(c, cc.auditor, msg.Email, audit.EventContactReceived, audit.Target{Kind: "message", Name: msg.ID.String()},
		map[string]interface{}{"category": msg.Category})

	if cc.notifier != nil {
		err := cc.notifier.NotifyContact(mail.ContactParams{
			Name:     msg.Name,
			Email:    msg.Email,
			Phone:    msg.Phone,
			Subject:  msg.Subject,
			Message:  msg.Message,
			Category: msg.Category,
		}, msg.CreatedAt)
		if err != nil {
			log.Warnw("Failed to queue contact notification", "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Formulario enviado correctamente",
		"data":    msg,
	})
}
