package session

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IsBcryptHash reports whether s is in one of the bcrypt hash formats.
func IsBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash for the password.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Credentials holds the single administrator account.
type Credentials struct {
	Email string
	// Password is a bcrypt hash, or plain text in development
	Password string
}

// Authenticator checks login attempts against the configured administrator.
type Authenticator struct {
	creds Credentials
	log   *zap.SugaredLogger
}

func NewAuthenticator(creds Credentials, log *zap.SugaredLogger) *Authenticator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if creds.Password != "" && !IsBcryptHash(creds.Password) {
		log.Warnw("Administrator password is stored in plain text; use `sitectl password hash` to generate a bcrypt hash")
	}
	return &Authenticator{creds: creds, log: log}
}

// Authenticate reports whether email and password match the administrator.
// An unconfigured account never authenticates.
func (a *Authenticator) Authenticate(email, password string) bool {
	if a.creds.Email == "" || a.creds.Password == "" || password == "" {
		return false
	}
	emailOK := strings.EqualFold(strings.TrimSpace(email), a.creds.Email)

	var passwordOK bool
	if IsBcryptHash(a.creds.Password) {
		err := bcrypt.CompareHashAndPassword([]byte(a.creds.Password), []byte(password))
		if err != nil && err != bcrypt.ErrMismatchedHashAndPassword {
			a.log.Errorw("Failed to compare administrator password hash", "error", err)
		}
		passwordOK = err == nil
	} else {
		passwordOK = subtle.ConstantTimeCompare([]byte(a.creds.Password), []byte(password)) == 1
	}
	return emailOK && passwordOK
}
