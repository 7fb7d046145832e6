package core

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"ClassRoutineTracker/internal/schedule"
)

var (
	requiredTag  = "required"
	requiredText = "this field is required"

	dateTag  = "date"
	dateText = "must be a date formatted as YYYY-MM-DD"
)

// Validator implements echo.Validator on top of go-playground/validator and
// renders errors with JSON field names.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator creates a validator with the custom rules registered.
func NewValidator() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	translator, _ := uni.GetTranslator("en")

	v := &Validator{validate: validator.New(), translator: translator}
	_ = en_translations.RegisterDefaultTranslations(v.validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation(dateTag, dateValidation)
	v.registerTranslation(dateTag, dateText, false)
	v.registerTranslation(requiredTag, requiredText, true)
	return v
}

// Validate runs the struct validation rules on i.
func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// Translate renders validation errors as a field -> message map.
func (v *Validator) Translate(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[fe.Field()] = fe.Translate(v.translator)
	}
	return out
}

func (v *Validator) registerTranslation(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// dateValidation accepts YYYY-MM-DD; empty strings are left to "required".
func dateValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(schedule.DateLayout, s)
	return err == nil
}
