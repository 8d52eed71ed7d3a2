package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/equitraccion/site/pkg/apiresponses"
)

type contactForm struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Category string `json:"category" validate:"required,oneof=forestales desarrollo formacion general"`
}

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		form    contactForm
		wantErr string
	}{
		{"valid", contactForm{"Ana", "ana@example.org", "general"}, ""},
		{"missing name reported first", contactForm{"", "bad", "x"}, "name is required"},
		{"bad email", contactForm{"Ana", "not-an-email", "general"}, "invalid email format"},
		{"unknown category", contactForm{"Ana", "ana@example.org", "sales"}, "category must be one of: forestales desarrollo formacion general"},
		{"too long", contactForm{strings.Repeat("a", 101), "ana@example.org", "general"}, "name must be at most 100 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestEmail(t *testing.T) {
	v := New()

	assert.NoError(t, v.Email("ana@example.org"))
	assert.EqualError(t, v.Email(""), "email is required")
	assert.EqualError(t, v.Email("ana@"), "invalid email format")
	assert.EqualError(t, v.Email(strings.Repeat("a", 250)+"@example.org"), "email is too long")
}

func TestText(t *testing.T) {
	v := New()

	assert.Equal(t, "Hola", v.Text("  <b>Hola</b> "))
	assert.Equal(t, "", v.Text("<script>alert(1)</script>"))
	assert.Equal(t, "Tom & Jerry", v.Text("Tom & Jerry"))
	assert.Equal(t, "", v.Text(""))
}

func TestErrorsAreValidationErrors(t *testing.T) {
	v := New()

	var verr *apiresponses.ValidationError
	assert.ErrorAs(t, v.Struct(contactForm{}), &verr)
	assert.Equal(t, "name is required", verr.Message)
	assert.ErrorAs(t, v.Email("ana@"), &verr)

	assert.False(t, errors.As(v.Struct(nil), &verr), "a nil struct is a programming error, not bad input")
}
