// Package validation holds the credential rules shared by registration and
// request decoding. Each rule reports the first violated constraint with a
// message that is safe to show to the user.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	EmailMaxLength    = 254
	LoginMinLength    = 3
	LoginMaxLength    = 50
	PasswordMinLength = 8
	PasswordMaxLength = 128
)

var (
	emailRegex   = regexp.MustCompile(`(?i)^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?@[a-z0-9](?:[a-z0-9.-]*[a-z0-9])?\.[a-z]{2,}$`)
	loginRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	upperRegex   = regexp.MustCompile(`[A-ZА-ЯЁ]`)
	lowerRegex   = regexp.MustCompile(`[a-zа-яё]`)
	digitRegex   = regexp.MustCompile(`[0-9]`)
	specialRegex = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// Error is a user-facing validation failure for a single field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Email checks the address shape and length limit.
func Email(email string) error {
	if strings.TrimSpace(email) == "" {
		return fieldError("email", "Email не может быть пустым")
	}
	if utf8.RuneCountInString(email) > EmailMaxLength {
		return fieldError("email", "Email слишком длинный (максимум %d символа)", EmailMaxLength)
	}
	if !emailRegex.MatchString(email) {
		return fieldError("email", "Некорректный формат email")
	}
	return nil
}

// Login checks length and the allowed alphabet (letters, digits, '-', '_').
func Login(login string) error {
	if strings.TrimSpace(login) == "" {
		return fieldError("login", "Логин не может быть пустым")
	}
	n := utf8.RuneCountInString(login)
	if n < LoginMinLength {
		return fieldError("login", "Логин должен содержать минимум %d символа", LoginMinLength)
	}
	if n > LoginMaxLength {
		return fieldError("login", "Логин не может содержать более %d символов", LoginMaxLength)
	}
	if !loginRegex.MatchString(login) {
		return fieldError("login", "Логин может содержать только буквы, цифры, дефис и подчеркивание")
	}
	return nil
}

// Password checks length and character-class requirements.
func Password(password string) error {
	if strings.TrimSpace(password) == "" {
		return fieldError("password", "Пароль не может быть пустым")
	}
	n := utf8.RuneCountInString(password)
	if n < PasswordMinLength {
		return fieldError("password", "Пароль должен содержать минимум %d символов", PasswordMinLength)
	}
	if n > PasswordMaxLength {
		return fieldError("password", "Пароль не может содержать более %d символов", PasswordMaxLength)
	}
	if !upperRegex.MatchString(password) {
		return fieldError("password", "Пароль должен содержать хотя бы одну заглавную букву")
	}
	if !lowerRegex.MatchString(password) {
		return fieldError("password", "Пароль должен содержать хотя бы одну строчную букву")
	}
	if !digitRegex.MatchString(password) {
		return fieldError("password", "Пароль должен содержать хотя бы одну цифру")
	}
	if !specialRegex.MatchString(password) {
		return fieldError("password", `Пароль должен содержать хотя бы один специальный символ (!@#$%%^&*()_+-=[]{};':"\|,.<>/?)`)
	}
	return nil
}
