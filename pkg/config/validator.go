package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// validate runs struct-tag validation (go-playground/validator) and then
// the cross-field checks tags cannot express, such as "every closed-set
// specialist name must have a launch command".
func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Namespace(), fmt.Errorf("%s", fe.Tag()))
		}
		return err
	}

	for _, name := range SpecialistNames {
		sc, ok := cfg.Specialists[name]
		if !ok || sc.Command == "" {
			return NewValidationError("specialists."+name, ErrSpecialistNotConfigured)
		}
	}

	return nil
}
