package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/equitraccion/site/pkg/audit"
	"github.com/equitraccion/site/pkg/store"
)

func validContact() map[string]string {
	return map[string]string{
		"name":     "Lucía Pérez",
		"email":    "Lucia@Example.org",
		"phone":    "+34 600 000 000",
		"subject":  "Curso de tracción animal",
		"message":  "¿Cuándo empieza la próxima edición?",
		"category": "formacion",
	}
}

func TestContact(t *testing.T) {
	t.Run("stores the message and notifies", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/api/contact", validContact(), fromIP("10.2.0.1"))

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "Formulario enviado correctamente", body["message"])

		msgs, err := env.store.ListMessages(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "lucia@example.org", msgs[0].Email)
		assert.Equal(t, store.MessageNew, msgs[0].Status)
		assert.Equal(t, "formacion", msgs[0].Category)

		require.Len(t, env.notifier.received, 1)
		assert.Equal(t, "Curso de tracción animal", env.notifier.received[0].Subject)
		assert.Equal(t, []audit.EventType{audit.EventContactReceived}, env.auditor.types())
	})

	t.Run("markup is stripped", func(t *testing.T) {
		env := newTestEnv(t)
		req := validContact()
		req["message"] = `Hola <script>alert(1)</script><b>equipo</b>`
		w := env.do(http.MethodPost, "/api/contact", req, fromIP("10.2.0.2"))
		require.Equal(t, http.StatusOK, w.Code)

		msgs, err := env.store.ListMessages(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.NotContains(t, msgs[0].Message, "<")
		assert.Contains(t, msgs[0].Message, "equipo")
	})

	t.Run("field made only of markup is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		req := validContact()
		req["name"] = "<b></b>"
		w := env.do(http.MethodPost, "/api/contact", req, fromIP("10.2.0.3"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Faltan campos obligatorios", decode(t, w)["message"])
	})

	t.Run("validation errors", func(t *testing.T) {
		env := newTestEnv(t)
		for field, value := range map[string]string{
			"category": "otros",
			"email":    "no-arroba",
			"subject":  "",
		} {
			req := validContact()
			req[field] = value
			w := env.do(http.MethodPost, "/api/contact", req, fromIP("10.2.1.1"))
			assert.Equal(t, http.StatusBadRequest, w.Code, field)
		}
		msgs, err := env.store.ListMessages(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("honeypot", func(t *testing.T) {
		env := newTestEnv(t)
		req := validContact()
		req["honeypot"] = "http://spam.example"
		w := env.do(http.MethodPost, "/api/contact", req, fromIP("10.2.0.4"))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, decode(t, w)["success"])
		msgs, err := env.store.ListMessages(context.Background(), "")
		require.NoError(t, err)
		assert.Empty(t, msgs)
		assert.Empty(t, env.notifier.received)
	})

	t.Run("fourth submission is rate limited", func(t *testing.T) {
		env := newTestEnv(t)
		for i := 0; i < 3; i++ {
			require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/api/contact", validContact(), fromIP("10.2.0.5")).Code)
		}
		w := env.do(http.MethodPost, "/api/contact", validContact(), fromIP("10.2.0.5"))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})
}
