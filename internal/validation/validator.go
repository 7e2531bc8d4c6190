package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator with the credential rules registered as the
// "tfemail", "login" and "password" tags.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(f.Name)
		}
		return name
	})

	must(v.RegisterValidation("tfemail", ruleFunc(Email)))
	must(v.RegisterValidation("login", ruleFunc(Login)))
	must(v.RegisterValidation("password", ruleFunc(Password)))
	return v
}

func ruleFunc(rule func(string) error) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return rule(fl.Field().String()) == nil
	}
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s and converts the first failure into an *Error.
func Struct(v *validator.Validate, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &Error{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Поле %s обязательно для заполнения", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Поле %s должно содержать минимум %s символов", field, fe.Param())
		}
		return fmt.Sprintf("Поле %s должно быть не меньше %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Поле %s не может содержать более %s символов", field, fe.Param())
		}
		return fmt.Sprintf("Поле %s должно быть не больше %s", field, fe.Param())
	case "tfemail":
		return Email(fe.Value().(string)).Error()
	case "login":
		return Login(fe.Value().(string)).Error()
	case "password":
		return Password(fe.Value().(string)).Error()
	default:
		return fmt.Sprintf("Поле %s заполнено некорректно", field)
	}
}
