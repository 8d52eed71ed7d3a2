package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/system"
	"github.com/equitraccion/site/pkg/validation"
)

// AdminStore is the part of the repository the back office uses.
type AdminStore interface {
	Stats(ctx context.Context) store.Stats

	ListSubscribers(ctx context.Context, status store.SubscriberStatus) ([]store.Subscriber, error)
	SubscriberByID(ctx context.Context, id uuid.UUID) (*store.Subscriber, error)
	SetSubscriberStatus(ctx context.Context, id uuid.UUID, status store.SubscriberStatus) error

	ListMessages(ctx context.Context, status store.MessageStatus) ([]store.ContactSubmission, error)
	SetMessageStatus(ctx context.Context, id uuid.UUID, status store.MessageStatus) error
	DeleteMessage(ctx context.Context, id uuid.UUID) error

	ListPosts(ctx context.Context) ([]store.Post, error)
	TogglePostPublished(ctx context.Context, id uuid.UUID) (*store.Post, error)
	DeletePost(ctx context.Context, id uuid.UUID) error

	ActiveCourses(ctx context.Context) ([]store.Course, error)
	CreateCourse(ctx context.Context, c *store.Course) error
}

type toggleSubscriberRequest struct {
	ID string `json:"id"`
}

type messageStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new read replied archived"`
}

type courseDateRequest struct {
	Start          string `json:"start" validate:"required"`
	End            string `json:"end" validate:"required"`
	SpotsAvailable int    `json:"spotsAvailable" validate:"gte=0"`
}

type courseRequest struct {
	Title           string              `json:"title" validate:"required,max=200"`
	DurationDays    int                 `json:"durationDays" validate:"gte=0"`
	Level           string              `json:"level" validate:"max=100"`
	ExperienceLevel string              `json:"experienceLevel" validate:"max=100"`
	MaxParticipants int                 `json:"maxParticipants" validate:"gte=0"`
	Price           float64             `json:"price" validate:"gte=0"`
	TargetAudience  string              `json:"targetAudience" validate:"max=500"`
	Contents        []string            `json:"contents"`
	Requirements    string              `json:"requirements" validate:"max=1000"`
	Dates           []courseDateRequest `json:"dates" validate:"dive"`
	Location        string              `json:"location" validate:"max=200"`
	Active          *bool               `json:"active"`
}

// AdminController serves the session gated /api/admin endpoints.
type AdminController struct {
	store     AdminStore
	validator *validation.Validator
	auditor   audit.Auditor
	log       *zap.SugaredLogger
}

func NewAdminController(s AdminStore, v *validation.Validator, auditor audit.Auditor, log *zap.SugaredLogger) *AdminController {
	return &AdminController{
		store:     s,
		validator: v,
		auditor:   auditor,
		log:       log.Named("admin-api"),
	}
}

func (ac *AdminController) BasePath() string { return "admin" }

// Handlers is empty: the api policy for /api/admin runs ahead of the session gate.
func (ac *AdminController) Handlers() []gin.HandlerFunc { return nil }

func (ac *AdminController) Register(rg *gin.RouterGroup) error {
	rg.GET("/stats", ac.stats)

	rg.GET("/subscribers", ac.listSubscribers)
	rg.POST("/subscribers/toggle-status", ac.toggleSubscriber)

	rg.GET("/messages", ac.listMessages)
	rg.PATCH("/messages/:id", ac.updateMessage)
	rg.DELETE("/messages/:id", ac.deleteMessage)

	rg.GET("/posts", ac.listPosts)
	rg.POST("/posts/:id/toggle-published", ac.togglePost)
	rg.DELETE("/posts/:id", ac.deletePost)

	rg.GET("/courses", ac.listCourses)
	rg.POST("/courses", ac.createCourse)
	return nil
}

func (ac *AdminController) stats(c *gin.Context) {
	apiresponses.RespondSuccess(c, "", ac.store.Stats(c.Request.Context()))
}

func (ac *AdminController) listSubscribers(c *gin.Context) {
	status := store.SubscriberStatus(c.Query("status")).Normalize()
	switch status {
	case "", store.SubscriberActive, store.SubscriberUnsubscribed:
	default:
		apiresponses.RespondError(c, apiresponses.NewValidationError("Estado inválido"), nil)
		return
	}
	subs, err := ac.store.ListSubscribers(c.Request.Context(), status)
	if err != nil {
		apiresponses.RespondError(c, upstream("list subscribers", err), system.GetReqLogger(c, ac.log))
		return
	}
	apiresponses.RespondSuccess(c, "", subs)
}

func (ac *AdminController) toggleSubscriber(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	var req toggleSubscriberRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := parseID(c, req.ID)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	sub, err := ac.store.SubscriberByID(ctx, id)
	if err != nil {
		apiresponses.RespondError(c, storeError(err, "subscriber", id.String(), "Suscriptor no encontrado"), log)
		return
	}
	next := sub.Status.Toggle()
	if err := ac.store.SetSubscriberStatus(ctx, id, next); err != nil {
		apiresponses.RespondError(c, storeError(err, "subscriber", id.String(), "Suscriptor no encontrado"), log)
		return
	}
	log.Infow("Subscriber status toggled", append(system.ResourceFields("subscriber", id.String()), "status", next)...)
	emit(c, ac.auditor, audit.EventSubscriberToggled, audit.Target{Kind: "subscriber", Name: sub.Email},
		map[string]interface{}{"status": string(next)})
	apiresponses.RespondSuccess(c, "Estado actualizado correctamente", gin.H{"id": id, "status": next})
}

func (ac *AdminController) listMessages(c *gin.Context) {
	status := store.MessageStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		apiresponses.RespondError(c, apiresponses.NewValidationError("Estado inválido"), nil)
		return
	}
	msgs, err := ac.store.ListMessages(c.Request.Context(), status)
	if err != nil {
		apiresponses.RespondError(c, upstream("list messages", err), system.GetReqLogger(c, ac.log))
		return
	}
	apiresponses.RespondSuccess(c, "", msgs)
}

func (ac *AdminController) updateMessage(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	var req messageStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.validator.Struct(req); err != nil {
		apiresponses.RespondError(c, err, log)
		return
	}
	if err := ac.store.SetMessageStatus(c.Request.Context(), id, store.MessageStatus(req.Status)); err != nil {
		apiresponses.RespondError(c, storeError(err, "message", id.String(), "Mensaje no encontrado"), log)
		return
	}
	emit(c, ac.auditor, audit.EventMessageStatusChanged, audit.Target{Kind: "message", Name: id.String()},
		map[string]interface{}{"status": req.Status})
	apiresponses.RespondSuccess(c, "Mensaje actualizado", nil)
}

func (ac *AdminController) deleteMessage(c *gin.Context) {
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := ac.store.DeleteMessage(c.Request.Context(), id); err != nil {
		apiresponses.RespondError(c, storeError(err, "message", id.String(), "Mensaje no encontrado"), system.GetReqLogger(c, ac.log))
		return
	}
	apiresponses.RespondSuccess(c, "Mensaje eliminado", nil)
}

func (ac *AdminController) listPosts(c *gin.Context) {
	posts, err := ac.store.ListPosts(c.Request.Context())
	if err != nil {
		apiresponses.RespondError(c, upstream("list posts", err), system.GetReqLogger(c, ac.log))
		return
	}
	apiresponses.RespondSuccess(c, "", posts)
}

func (ac *AdminController) togglePost(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	post, err := ac.store.TogglePostPublished(c.Request.Context(), id)
	if err != nil {
		apiresponses.RespondError(c, storeError(err, "post", id.String(), "Post no encontrado"), log)
		return
	}
	event := audit.EventPostUnpublished
	if post.Published {
		event = audit.EventPostPublished
	}
	log.Infow("Post publication toggled", append(system.ResourceFields("post", id.String()), "published", post.Published)...)
	emit(c, ac.auditor, event, audit.Target{Kind: "post", Name: post.Slug}, nil)
	apiresponses.RespondSuccess(c, "Estado actualizado correctamente", post)
}

func (ac *AdminController) deletePost(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	id, ok := parseID(c, c.Param("id"))
	if !ok {
		return
	}
	if err := ac.store.DeletePost(c.Request.Context(), id); err != nil {
		apiresponses.RespondError(c, storeError(err, "post", id.String(), "Post no encontrado"), log)
		return
	}
	log.Infow("Post deleted", system.ResourceFields("post", id.String())...)
	emit(c, ac.auditor, audit.EventPostDeleted, audit.Target{Kind: "post", Name: id.String()}, nil)
	apiresponses.RespondSuccess(c, "Post eliminado correctamente", nil)
}

func (ac *AdminController) listCourses(c *gin.Context) {
	courses, err := ac.store.ActiveCourses(c.Request.Context())
	if err != nil {
		apiresponses.RespondError(c, upstream("list courses", err), system.GetReqLogger(c, ac.log))
		return
	}
	apiresponses.RespondSuccess(c, "", courses)
}

func (ac *AdminController) createCourse(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)
	var req courseRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.validator.Struct(req); err != nil {
		apiresponses.RespondError(c, err, log)
		return
	}
	course, err := req.toCourse(ac.validator)
	if err != nil {
		apiresponses.RespondError(c, err, log)
		return
	}
	if err := ac.store.CreateCourse(c.Request.Context(), course); err != nil {
		apiresponses.RespondError(c, upstream("create course", err), log)
		return
	}
	emit(c, ac.auditor, audit.EventCourseCreated, audit.Target{Kind: "course", Name: course.Title}, nil)
	apiresponses.RespondCreated(c, "Curso creado", course)
}
