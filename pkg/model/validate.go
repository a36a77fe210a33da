package model

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a threshold configuration before it is written. The
// boundaries must be strictly increasing: baixo < medio < alto < critico.
func (c *AlertConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		if fieldErrors, ok := err.(validator.ValidationErrors); ok && len(fieldErrors) > 0 {
			fe := fieldErrors[0]
			return fmt.Errorf("%w: campo %s falhou na regra %q", ErrConfigInvalid, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return nil
}

// Validate checks that the boundaries are strictly increasing.
func (t Thresholds) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("%w: limites devem ser estritamente crescentes (baixo < medio < alto < critico)", ErrConfigInvalid)
	}
	return nil
}
