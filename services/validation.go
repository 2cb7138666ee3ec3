package services

import (
	"chat-hub/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// check validates a request struct and classifies failures as invalid input.
func check(req any) error {
	if err := validate.Struct(req); err != nil {
		return errors.Invalid(err)
	}
	return nil
}
