package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.  Field names
// in errors use the json tag so clients see the names they sent.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns the validator registered on the echo instance.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error { return cv.v.Struct(i) }

var tagMessages = map[string]string{
	"required": "The field %s is required",
	"email":    "The field %s must be a valid email address",
	"min":      "The field %s is too short",
	"oneof":    "The field %s has an unsupported value",
	"eqfield":  "The field %s does not match",
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := tagMessages[fe.Tag()]; ok {
		return strings.Replace(msg, "%s", fe.Field(), 1)
	}
	return "The field " + fe.Field() + " is invalid"
}

// bindAndValidate binds the request body into req and runs the struct
// validator.  On failure it writes the response and returns false.
func bindAndValidate(c echo.Context, req any) bool {
	if err := c.Bind(req); err != nil {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		return false
	}
	err := c.Validate(req)
	if err == nil {
		return true
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		_ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		return false
	}
	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		fields[fe.Field()] = fieldMessage(fe)
	}
	_ = c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": fieldMessage(ves[0]), "fields": fields})
	return false
}
