// Package validator wraps go-playground/validator behind a small struct so
// modules take it as an injected dependency instead of a package global.
package validator

import "github.com/go-playground/validator/v10"

// Validator validates request DTOs against their struct tags.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the default tag set. Register
// marketplace-specific tags through RegisterValidation.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Struct validates a struct against its validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single value against a tag expression.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation adds a custom validation tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
