package auth

import (
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/hilthontt/huddle/internal/domain"
)

var validate = validator.New()

type Credentials struct {
	Username string `json:"username" validate:"required,min=2,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ValidateSignup applies the struct rules, the username charset and a basic
// password complexity check.
func ValidateSignup(c Credentials) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := domain.ValidateUsername(c.Username); err != nil {
		return err
	}
	if !isPasswordComplex(c.Password) {
		return ErrWeakPassword
	}
	return nil
}

func ValidateLogin(c Credentials) error {
	return validate.Struct(c)
}

func isPasswordComplex(s string) bool {
	var hasLetter, hasNumber bool
	for _, char := range s {
		switch {
		case unicode.IsLetter(char):
			hasLetter = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}
	return hasLetter && hasNumber
}
