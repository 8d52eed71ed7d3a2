package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/session"
	"github.com/equitraccion/site/pkg/system"
	"github.com/equitraccion/site/pkg/validation"
)

var errSessionsUnavailable = errors.New("session manager is not configured")

// Authenticator checks administrator credentials.
type Authenticator interface {
	Authenticate(email, password string) bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// AuthController serves /api/auth: login issues the session cookie, logout clears it.
type AuthController struct {
	gate      *SessionGate
	creds     Authenticator
	admission Admission
	validator *validation.Validator
	auditor   audit.Auditor
	log       *zap.SugaredLogger
}

func NewAuthController(gate *SessionGate, creds Authenticator, admission Admission,
	v *validation.Validator, auditor audit.Auditor, log *zap.SugaredLogger,
) *AuthController {
	return &AuthController{
		gate:      gate,
		creds:     creds,
		admission: admission,
		validator: v,
		auditor:   auditor,
		log:       log.Named("auth"),
	}
}

func (ac *AuthController) BasePath() string { return "auth" }

func (ac *AuthController) Handlers() []gin.HandlerFunc { return nil }

func (ac *AuthController) Register(rg *gin.RouterGroup) error {
	rg.POST("/login", ac.admission.Login(), ac.login)
	rg.POST("/logout", ac.admission.API(), ac.logout)
	return nil
}

func (ac *AuthController) login(c *gin.Context) {
	log := system.GetReqLogger(c, ac.log)

	var req loginRequest
	if !bindJSON(c, &req) {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return
	}
	if err := ac.validator.Struct(req); err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		apiresponses.RespondError(c, err, log)
		return
	}

	if !ac.creds.Authenticate(req.Email, req.Password) {
		metrics.LoginAttempts.WithLabelValues("failure").Inc()
		log.Warnw("Administrator login failed", "email", req.Email)
		emitAs(c, ac.auditor, req.Email, audit.EventLoginFailed, audit.Target{Kind: "session"}, nil)
		apiresponses.RespondError(c, &apiresponses.AuthError{Reason: "credentials rejected", Message: "Credenciales inválidas"}, log)
		return
	}

	sessions := ac.gate.Sessions()
	if sessions == nil {
		apiresponses.RespondError(c, upstream("issue session token", errSessionsUnavailable), log)
		return
	}
	token, err := sessions.Issue(req.Email, session.RoleAdmin)
	if err != nil {
		apiresponses.RespondError(c, upstream("issue session token", err), log)
		return
	}
	ac.gate.Cookie().Set(c, token, sessions.TTL())

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	log.Infow("Administrator logged in", "email", req.Email)
	emitAs(c, ac.auditor, req.Email, audit.EventLoginSucceeded, audit.Target{Kind: "session"}, nil)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Autenticación exitosa",
		"redirect": DashboardPath,
	})
}

// logout only removes the cookie; the token itself stays valid until it expires.
func (ac *AuthController) logout(c *gin.Context) {
	user := ""
	if claims, ok := ac.gate.Claims(c); ok {
		user = claims.Email
	}
	ac.gate.Cookie().Clear(c)
	emitAs(c, ac.auditor, user, audit.EventLogout, audit.Target{Kind: "session"}, nil)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Sesión cerrada exitosamente",
		"redirect": LoginPagePath,
	})
}
