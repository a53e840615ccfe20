// Package auth содержит бизнес-логику аутентификации: регистрацию, вход
// по паролю и magic-ссылке, refresh-сессии, сброс и смену пароля.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/a8n-tools/platform/internal/config"
	"github.com/a8n-tools/platform/internal/lib/jwt"
	"github.com/a8n-tools/platform/internal/lib/password"
	"github.com/a8n-tools/platform/internal/lib/rabbitmq"
	"github.com/a8n-tools/platform/internal/lib/sl"
	"github.com/a8n-tools/platform/internal/lib/token"
	"github.com/a8n-tools/platform/internal/models"
	"github.com/a8n-tools/platform/internal/services/audit"
)

// Ошибки уровня бизнес-логики. Обработчики переводят их в коды ответов.
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password does not meet the policy")
)

const (
	magicLinkTTL     = 15 * time.Minute
	passwordResetTTL = time.Hour
)

// Repository определяет методы хранилища, нужные аутентификации.
type Repository interface {
	CreateUser(ctx context.Context, user models.CreateUser) (string, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error

	CreateRefreshToken(ctx context.Context, t models.CreateRefreshToken) (string, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, id, tokenHash string, expiresAt, usedAt time.Time) (int, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) (int, error)
	RevokeRefreshTokenByID(ctx context.Context, id, userID string) (int, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string) (int, error)
	ListSessions(ctx context.Context, userID string) ([]*models.RefreshToken, error)

	CreateOneTimeToken(ctx context.Context, email, tokenHash string, purpose models.TokenPurpose, expiresAt time.Time) (string, error)
	ConsumeOneTimeToken(ctx context.Context, tokenHash string, purpose models.TokenPurpose) (*models.OneTimeToken, error)
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// TokenPair access и refresh токены новой сессии.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionMeta сведения о клиенте, создающем сессию.
type SessionMeta struct {
	DeviceInfo string
	IP         string
}

// Service реализует бизнес-логику аутентификации.
type Service struct {
	repo       Repository
	jwtMaker   jwt.Maker
	publisher  Publisher
	audit      *audit.Service
	log        *slog.Logger
	refreshTTL time.Duration
	baseURL    string
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, jwtMaker jwt.Maker, publisher Publisher, auditSvc *audit.Service, log *slog.Logger, cfg *config.Config) *Service {
	return &Service{
		repo:       repo,
		jwtMaker:   jwtMaker,
		publisher:  publisher,
		audit:      auditSvc,
		log:        log,
		refreshTTL: cfg.JWTToken.RefreshTTL,
		baseURL:    cfg.App.BaseURL,
	}
}

// Register создает нового пользователя и сразу открывает сессию.
func (s *Service) Register(ctx context.Context, email, rawPassword string, meta SessionMeta) (*models.User, TokenPair, error) {
	if err := password.Validate(rawPassword, email); err != nil {
		return nil, TokenPair{}, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, TokenPair{}, ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, TokenPair{}, err
	}

	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return nil, TokenPair{}, err
	}
	userID, err := s.repo.CreateUser(ctx, models.CreateUser{
		Email:        email,
		PasswordHash: &hashed,
		Role:         models.RoleSubscriber,
	})
	if err != nil {
		return nil, TokenPair{}, err
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditUserRegistered).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))
	s.notifyAdmins(models.NotificationEvent{
		Type:    models.NotificationNewRegistration,
		Title:   "New registration",
		Message: fmt.Sprintf("User %s registered", user.Email),
		UserID:  &user.ID,
	})

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Login проверяет учетные данные и открывает новую сессию.
func (s *Service) Login(ctx context.Context, email, rawPassword string, meta SessionMeta) (*models.User, TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, TokenPair{}, ErrInvalidCredentials
		}
		return nil, TokenPair{}, err
	}
	if user.PasswordHash == nil || !password.CompareHash(rawPassword, *user.PasswordHash) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to update last login", sl.Err(err))
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditUserLogin).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// Refresh ротирует сессию: проверяет живой refresh-токен, заменяет его
// новым и выпускает свежий access-токен. Прежний refresh-токен после
// этого недействителен. Состояние membership в claims обновляется из базы.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.User, TokenPair, error) {
	session, err := s.repo.GetRefreshTokenByHash(ctx, token.Hash(refreshToken))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, TokenPair{}, ErrInvalidToken
		}
		return nil, TokenPair{}, err
	}

	user, err := s.repo.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if user.IsDeleted() {
		return nil, TokenPair{}, ErrInvalidToken
	}

	raw, hash, err := token.Generate()
	if err != nil {
		return nil, TokenPair{}, err
	}
	now := time.Now().UTC()
	rows, err := s.repo.RotateRefreshToken(ctx, session.ID, hash, now.Add(s.refreshTTL), now)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if rows == 0 {
		return nil, TokenPair{}, ErrInvalidToken
	}

	access, err := s.jwtMaker.GenerateToken(user)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

// Logout отзывает сессию по refresh-токену. Отсутствие сессии не ошибка.
func (s *Service) Logout(ctx context.Context, refreshToken string, actor *models.User, meta SessionMeta) error {
	if _, err := s.repo.RevokeRefreshToken(ctx, token.Hash(refreshToken)); err != nil {
		return err
	}
	if actor != nil {
		s.audit.Record(ctx, models.NewAuditEntry(models.AuditUserLogout).
			WithActor(actor.ID, actor.Email, actor.Role).
			WithIP(meta.IP))
	}
	return nil
}

// LogoutAll отзывает все сессии пользователя.
func (s *Service) LogoutAll(ctx context.Context, userID string) (int, error) {
	return s.repo.RevokeAllRefreshTokens(ctx, userID)
}

// RevokeSession отзывает одну сессию пользователя. Чужую сессию отозвать
// нельзя: запрос фильтруется по владельцу.
func (s *Service) RevokeSession(ctx context.Context, userID, sessionID string) error {
	rows, err := s.repo.RevokeRefreshTokenByID(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Sessions возвращает живые сессии пользователя.
func (s *Service) Sessions(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	return s.repo.ListSessions(ctx, userID)
}

// GetUser возвращает пользователя по ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetUser(ctx, userID)
}

// RequestMagicLink создает одноразовую ссылку для входа и ставит письмо
// в очередь. Всегда завершается успехом, чтобы не раскрывать, существует
// ли адрес.
func (s *Service) RequestMagicLink(ctx context.Context, email string, meta SessionMeta) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	raw, hash, err := token.Generate()
	if err != nil {
		return err
	}
	if _, err := s.repo.CreateOneTimeToken(ctx, email, hash, models.PurposeMagicLink, time.Now().UTC().Add(magicLinkTTL)); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMagicLinkRequested).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))

	return s.publisher.Publish(rabbitmq.RoutingKeyEmail, models.EmailMessage{
		To:      email,
		Subject: "Your sign-in link",
		Body: fmt.Sprintf("Follow this link to sign in: %s/auth/magic-link/verify?token=%s\n\nThe link expires in 15 minutes.",
			s.baseURL, raw),
	})
}

// ConsumeMagicLink проверяет одноразовый токен и открывает сессию.
// Использование ссылки подтверждает email.
func (s *Service) ConsumeMagicLink(ctx context.Context, rawToken string, meta SessionMeta) (*models.User, TokenPair, error) {
	ott, err := s.repo.ConsumeOneTimeToken(ctx, token.Hash(rawToken), models.PurposeMagicLink)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, TokenPair{}, ErrInvalidToken
		}
		return nil, TokenPair{}, err
	}

	user, err := s.repo.GetUserByEmail(ctx, ott.UserEmail)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !user.EmailVerified {
		if err := s.repo.SetEmailVerified(ctx, user.ID); err != nil {
			s.log.Warn("failed to mark email verified", sl.Err(err))
		}
	}
	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.log.Warn("failed to update last login", sl.Err(err))
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditMagicLinkUsed).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))

	pair, err := s.openSession(ctx, user, meta)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return user, pair, nil
}

// RequestPasswordReset создает токен сброса пароля и ставит письмо в
// очередь. Как и magic link, не раскрывает существование адреса.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, meta SessionMeta) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	raw, hash, err := token.Generate()
	if err != nil {
		return err
	}
	if _, err := s.repo.CreateOneTimeToken(ctx, email, hash, models.PurposePasswordReset, time.Now().UTC().Add(passwordResetTTL)); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditPasswordResetRequested).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))

	return s.publisher.Publish(rabbitmq.RoutingKeyEmail, models.EmailMessage{
		To:      email,
		Subject: "Password reset",
		Body: fmt.Sprintf("Follow this link to reset your password: %s/auth/password-reset/confirm?token=%s\n\nThe link expires in 1 hour.",
			s.baseURL, raw),
	})
}

// ResetPassword устанавливает новый пароль по токену сброса и отзывает
// все сессии пользователя.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string, meta SessionMeta) error {
	ott, err := s.repo.ConsumeOneTimeToken(ctx, token.Hash(rawToken), models.PurposePasswordReset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}

	user, err := s.repo.GetUserByEmail(ctx, ott.UserEmail)
	if err != nil {
		return err
	}
	if err := password.Validate(newPassword, user.Email); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}
	if _, err := s.repo.RevokeAllRefreshTokens(ctx, user.ID); err != nil {
		s.log.Warn("failed to revoke sessions after password reset", sl.Err(err))
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditPasswordResetCompleted).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP).
		WithSeverity(models.SeverityWarning))
	return nil
}

// ChangePassword меняет пароль аутентифицированного пользователя.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string, meta SessionMeta) error {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.PasswordHash == nil || !password.CompareHash(current, *user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := password.Validate(newPassword, user.Email); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEntry(models.AuditPasswordChanged).
		WithActor(user.ID, user.Email, user.Role).
		WithIP(meta.IP))
	return nil
}

func (s *Service) openSession(ctx context.Context, user *models.User, meta SessionMeta) (TokenPair, error) {
	access, err := s.jwtMaker.GenerateToken(user)
	if err != nil {
		return TokenPair{}, err
	}

	raw, hash, err := token.Generate()
	if err != nil {
		return TokenPair{}, err
	}
	create := models.CreateRefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().UTC().Add(s.refreshTTL),
	}
	if meta.DeviceInfo != "" {
		create.DeviceInfo = &meta.DeviceInfo
	}
	if meta.IP != "" {
		create.IPAddress = &meta.IP
	}
	if _, err := s.repo.CreateRefreshToken(ctx, create); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

func (s *Service) notifyAdmins(event models.NotificationEvent) {
	if err := s.publisher.Publish(rabbitmq.RoutingKeyNotification, event); err != nil {
		s.log.Error("failed to publish admin notification", sl.Err(err))
	}
}
