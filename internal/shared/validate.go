package shared

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the process-wide validator with the custom tags
// registered:
//
//	httpverb  one of GET POST PUT PATCH DELETE HEAD OPTIONS
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("httpverb", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
				return true
			}
			return false
		})
	})
	return validate
}
