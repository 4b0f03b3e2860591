package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var aspectRatioPattern = regexp.MustCompile(`^\d+:\d+$`)

func NewValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("aspect_ratio", func(fl validator.FieldLevel) bool {
		return aspectRatioPattern.MatchString(fl.Field().String())
	})

	return validate
}
