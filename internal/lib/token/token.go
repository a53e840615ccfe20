// Package token генерирует непрозрачные токены для refresh сессий,
// magic link и сброса пароля. В базе хранится только SHA-256 хэш,
// сам токен отдается клиенту один раз.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const tokenBytes = 32

// Generate возвращает случайный токен и его хэш для хранения.
func Generate() (token string, hash string, err error) {
	const op = "token.Generate"

	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	token = hex.EncodeToString(buf)
	return token, Hash(token), nil
}

// Hash возвращает hex-представление SHA-256 от токена.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
