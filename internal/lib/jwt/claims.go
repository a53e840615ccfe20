package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/a8n-tools/platform/internal/models"
)

// CustomClaims описывает пользовательские данные, хранящиеся в access токене.
//
// Сюда кладется срез состояния членства на момент выдачи, чтобы middleware
// мог принимать решения о доступе без похода в базу. Состояние обновляется
// при каждом refresh.
type CustomClaims struct {
	UserID               string `json:"sub"`
	Email                string `json:"email"`
	Role                 string `json:"role"`
	MembershipStatus     string `json:"membership_status"`
	MembershipTier       string `json:"membership_tier"`
	PriceLocked          bool   `json:"price_locked"`
	jwt.RegisteredClaims        // Встроенные стандартные claims JWT (ExpiresAt, IssuedAt и пр.)
}

// GenerateToken создает JWT токен со срезом состояния пользователя,
// подписывая его секретным ключом. Время жизни определяется tokenTTL.
func (j *MakerImpl) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		UserID:           user.ID,
		Email:            user.Email,
		Role:             string(user.Role),
		MembershipStatus: string(user.MembershipStatus),
		MembershipTier:   string(user.MembershipTier),
		PriceLocked:      user.PriceLocked,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
			ID:        uuid.NewString(),
			Issuer:    j.issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken парсит JWT токен, проверяет его подпись и валидность,
// возвращает CustomClaims с данными, если токен корректен.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(j.issuer))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
