package serverutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateRequest runs the struct's validate tags. The returned error is a
// validator.ValidationErrors the error middleware renders as 400.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}
