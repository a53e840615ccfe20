// Package password отвечает за хэширование паролей и проверку
// парольной политики.
package password

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinLength минимальная длина пароля.
const MinLength = 12

var (
	ErrTooShort      = errors.New("password must be at least 12 characters")
	ErrNoUppercase   = errors.New("password must contain an uppercase letter")
	ErrNoLowercase   = errors.New("password must contain a lowercase letter")
	ErrNoDigit       = errors.New("password must contain a digit")
	ErrNoSpecial     = errors.New("password must contain a special character")
	ErrTooCommon     = errors.New("password is too common")
	ErrContainsEmail = errors.New("password must not contain the email address")
)

// Список паролей, которые встречаются в утечках слишком часто,
// чтобы их разрешать даже при формальном соответствии политике.
var commonPasswords = map[string]struct{}{
	"password1234!":   {},
	"password12345":   {},
	"qwerty123456!":   {},
	"admin1234567!":   {},
	"welcome12345!":   {},
	"letmein12345!":   {},
	"changeme1234!":   {},
	"p@ssword1234!":   {},
	"passw0rd1234!":   {},
	"1234567890ab!":   {},
	"iloveyou1234!":   {},
	"sunshine1234!":   {},
	"master123456!":   {},
	"monkey1234567":   {},
	"superman1234!":   {},
	"football1234!":   {},
	"baseball1234!":   {},
	"trustno1trust!":  {},
	"dragon1234567!":  {},
	"password123456!": {},
}

// GetHash возвращает bcrypt-хэш пароля.
func GetHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CompareHash сравнивает пароль с хэшем.
func CompareHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Validate проверяет пароль на соответствие политике. Email нужен,
// чтобы запретить пароли, содержащие адрес пользователя.
func Validate(password, email string) error {
	if len(password) < MinLength {
		return ErrTooShort
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	switch {
	case !hasUpper:
		return ErrNoUppercase
	case !hasLower:
		return ErrNoLowercase
	case !hasDigit:
		return ErrNoDigit
	case !hasSpecial:
		return ErrNoSpecial
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return ErrTooCommon
	}

	if email != "" {
		local := strings.ToLower(strings.SplitN(email, "@", 2)[0])
		if len(local) >= 4 && strings.Contains(strings.ToLower(password), local) {
			return ErrContainsEmail
		}
	}

	return nil
}
