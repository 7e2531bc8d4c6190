package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerInput struct {
	Login    string `json:"login" validate:"login"`
	Email    string `json:"email" validate:"tfemail"`
	Password string `json:"password" validate:"password"`
}

type accountInput struct {
	Name string `json:"name" validate:"required,min=7,max=100"`
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	err := Struct(v, registerInput{Login: "ivan", Email: "ivan@example.com", Password: "Secret123!"})
	assert.NoError(t, err)
}

func TestStructReportsCustomRuleMessage(t *testing.T) {
	v := New()
	err := Struct(v, registerInput{Login: "ivan", Email: "ivan@example.com", Password: "secret123!"})
	require.Error(t, err)

	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "password", verr.Field)
	assert.Contains(t, verr.Message, "заглавн")
}

func TestStructReportsBuiltinRuleMessage(t *testing.T) {
	v := New()

	err := Struct(v, accountInput{Name: "short"})
	require.Error(t, err)
	assert.Equal(t, "Поле name должно содержать минимум 7 символов", err.Error())

	err = Struct(v, accountInput{})
	require.Error(t, err)
	assert.Equal(t, "Поле name обязательно для заполнения", err.Error())
}
