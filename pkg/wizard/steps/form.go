// Package steps holds the pages of the create-site wizard and builds the
// ordered list of active steps from configuration.
package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wiki-console-be/pkg/wikiapi"
	"wiki-console-be/pkg/wizard"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodeForm parses and validates the operator's form for a step. Every
// failure is a ValidationError.
func decodeForm[T any](step string, form json.RawMessage) (T, error) {
	var v T
	if len(form) == 0 || string(form) == "null" {
		return v, wizard.NewValidationError(step, "form is required")
	}
	if err := json.Unmarshal(form, &v); err != nil {
		return v, &wizard.ValidationError{Step: step, Message: "form is not valid JSON", Err: err}
	}
	if err := validate.Struct(v); err != nil {
		return v, &wizard.ValidationError{Step: step, Message: describe(err), Err: err}
	}
	return v, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// backendError turns a request the backend rejected into a ValidationError so
// the operator can correct the form; other failures pass through.
func backendError(step string, err error) error {
	var apiErr *wikiapi.APIError
	if errors.As(err, &apiErr) && apiErr.IsClientError() {
		return &wizard.ValidationError{Step: step, Message: apiErr.Message, Err: err}
	}
	return err
}
