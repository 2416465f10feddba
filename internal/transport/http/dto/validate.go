package dto

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/domain"
)

var (
	validate *validator.Validate
	trans    ut.Translator
)

var evidenceFormats = []string{
	engine.FormatJPEG,
	engine.FormatPNG,
	engine.FormatGIF,
	engine.FormatWebP,
	engine.FormatBMP,
}

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// report json names, not Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("password_strength", validatePasswordStrength)
	_ = validate.RegisterValidation("username_format", validateUsernameFormat)
	_ = validate.RegisterValidation("modality", validateModality)
	_ = validate.RegisterValidation("evidence_format", validateEvidenceFormat)

	english := en.New()
	trans, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	registerTranslation("password_strength", "{0} must be at least 8 characters and mix three of: upper case, lower case, digits, symbols")
	registerTranslation("username_format", "{0} must be 3-50 letters, digits, '_', '-' or '.', starting with a letter or digit")
}

func registerTranslation(tag, text string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(t ut.Translator) error { return t.Add(tag, text, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

func validatePasswordStrength(fl validator.FieldLevel) bool {
	return domain.CheckPasswordStrength(fl.Field().String()) == nil
}

func validateUsernameFormat(fl validator.FieldLevel) bool {
	return domain.ValidateUsername(fl.Field().String()) == nil
}

func validateModality(fl validator.FieldLevel) bool {
	_, err := domain.ParseModality(fl.Field().String())
	return err == nil
}

func validateEvidenceFormat(fl validator.FieldLevel) bool {
	return slices.Contains(evidenceFormats, engine.NormalizeFormat(fl.Field().String()))
}

// Validate checks struct tags on req. Field failures become
// validation_failed with a message per json field; an unknown modality or
// evidence format keeps its dedicated code.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return domain.ErrInternal(err)
	}

	fields := make(map[string]string, len(ves))
	for _, fe := range ves {
		switch fe.Tag() {
		case "modality":
			return domain.ErrUnsupportedModality(fmt.Sprint(fe.Value()))
		case "evidence_format":
			return domain.ErrUnsupportedEvidenceFormat(fmt.Sprint(fe.Value()))
		}
		fields[fe.Field()] = fe.Translate(trans)
	}
	return domain.ErrValidation(fields)
}
