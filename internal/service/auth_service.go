package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fittrack-be/internal/dto"
	"fittrack-be/internal/entity"
	"fittrack-be/internal/pkg/logger"
	"fittrack-be/internal/pkg/mailer"
	"fittrack-be/internal/repository/memory"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"

	"fittrack-be/pkg/events"
	pktNats "fittrack-be/pkg/nats"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.LoginResponse, error)
	// Validate resolves a bearer token to its authenticated user. The session
	// row in the database is the authority; the token signature alone is not
	// enough.
	Validate(ctx context.Context, bearer string) (*dto.AuthenticatedUser, error)
	Refresh(ctx context.Context, bearer, ipAddress, userAgent string) (*dto.RefreshResponse, error)
	Logout(ctx context.Context, bearer string) error
	ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	emailService   mailer.IEmailService
	eventPublisher *pktNats.Publisher
	sessionCache   *memory.SessionCache
	log            logger.ILogger
	jwtSecret      string
	sessionTTL     time.Duration
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	emailService mailer.IEmailService,
	eventPublisher *pktNats.Publisher,
	sessionCache *memory.SessionCache,
	log logger.ILogger,
	jwtSecret string,
	sessionTTL time.Duration,
) IAuthService {
	return &authService{
		uowFactory:     uowFactory,
		emailService:   emailService,
		eventPublisher: eventPublisher,
		sessionCache:   sessionCache,
		log:            log,
		jwtSecret:      jwtSecret,
		sessionTTL:     sessionTTL,
	}
}

// stripBearer accepts both "Bearer <token>" and a bare token.
func stripBearer(header string) string {
	token := strings.TrimSpace(header)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func (s *authService) signToken(userId, sessionId uuid.UUID, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    userId.String(),
		"session_id": sessionId.String(),
		"exp":        expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	user := &entity.User{
		Id:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: &hashStr,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("auth", "user registered", map[string]interface{}{
		"user_id": user.Id.String(),
	})

	return &dto.RegisterResponse{Id: user.Id, Email: user.Email}, nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest, ipAddress, userAgent string) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	// Every credential failure answers the same error so accounts cannot
	// be enumerated. Storage errors are not credential failures and
	// surface as such.
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if user.PasswordHash == nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	sessionId := uuid.New()
	expiresAt := time.Now().Add(s.sessionTTL)

	signedToken, err := s.signToken(user.Id, sessionId, expiresAt)
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		Id:        sessionId,
		UserId:    user.Id,
		Token:     signedToken,
		ExpiresAt: expiresAt,
		IpAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := uow.SessionRepository().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %v", err)
	}

	s.sessionCache.Save(&dto.AuthenticatedUser{
		UserId:    user.Id,
		Email:     user.Email,
		Name:      user.Name,
		SessionId: sessionId,
		Token:     signedToken,
		ExpiresAt: expiresAt,
	})

	if s.eventPublisher != nil {
		event := events.NewUserLoginEvent(user.Id.String(), ipAddress, userAgent)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.log.Warn("auth", "failed to publish USER_LOGIN event", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return &dto.LoginResponse{
		Token:     signedToken,
		ExpiresAt: expiresAt,
		User: dto.UserDTO{
			Id:    user.Id,
			Email: user.Email,
			Name:  user.Name,
		},
	}, nil
}

func (s *authService) Validate(ctx context.Context, bearer string) (*dto.AuthenticatedUser, error) {
	token := stripBearer(bearer)
	if token == "" {
		return nil, ErrUnauthorized
	}

	if cached, found := s.sessionCache.Get(token); found {
		return cached, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, user, err := uow.SessionRepository().FindOneWithUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || user == nil {
		return nil, ErrUnauthorized
	}
	// Expiry must be strictly in the future.
	if !time.Now().Before(session.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	authed := &dto.AuthenticatedUser{
		UserId:    user.Id,
		Email:     user.Email,
		Name:      user.Name,
		SessionId: session.Id,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	}
	s.sessionCache.Save(authed)

	return authed, nil
}

// Refresh rotates the session: the old row is removed and a fresh token with
// a full TTL is issued in the same transaction.
func (s *authService) Refresh(ctx context.Context, bearer, ipAddress, userAgent string) (*dto.RefreshResponse, error) {
	token := stripBearer(bearer)
	if token == "" {
		return nil, ErrUnauthorized
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, user, err := uow.SessionRepository().FindOneWithUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil || user == nil || !time.Now().Before(session.ExpiresAt) {
		return nil, ErrUnauthorized
	}

	sessionId := uuid.New()
	expiresAt := time.Now().Add(s.sessionTTL)
	signedToken, err := s.signToken(user.Id, sessionId, expiresAt)
	if err != nil {
		return nil, err
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.SessionRepository().Delete(ctx, session.Id); err != nil {
		return nil, err
	}
	newSession := &entity.Session{
		Id:        sessionId,
		UserId:    user.Id,
		Token:     signedToken,
		ExpiresAt: expiresAt,
		IpAddress: ipAddress,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
	}
	if err := uow.SessionRepository().Create(ctx, newSession); err != nil {
		return nil, err
	}

	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.sessionCache.Delete(token)
	s.sessionCache.Save(&dto.AuthenticatedUser{
		UserId:    user.Id,
		Email:     user.Email,
		Name:      user.Name,
		SessionId: sessionId,
		Token:     signedToken,
		ExpiresAt: expiresAt,
	})

	return &dto.RefreshResponse{
		Token:     signedToken,
		ExpiresAt: expiresAt,
	}, nil
}

// Logout is idempotent: an unknown token is treated as already logged out.
func (s *authService) Logout(ctx context.Context, bearer string) error {
	token := stripBearer(bearer)
	if token == "" {
		return nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SessionRepository().DeleteByToken(ctx, token); err != nil {
		return err
	}
	s.sessionCache.Delete(token)
	return nil
}

func (s *authService) ForgotPassword(ctx context.Context, req *dto.ForgotPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return err
	}
	if user == nil {
		// Don't leak exists
		return nil
	}

	token := uuid.New().String()
	resetToken := &entity.PasswordResetToken{
		Id:        uuid.New(),
		UserId:    user.Id,
		Token:     token,
		ExpiresAt: time.Now().Add(1 * time.Hour),
		Used:      false,
		CreatedAt: time.Now(),
	}

	if err := uow.UserRepository().CreatePasswordResetToken(ctx, resetToken); err != nil {
		return err
	}

	go func() {
		if emailErr := s.emailService.SendResetToken(user.Email, token); emailErr != nil {
			s.log.Error("auth", "failed to send reset email", map[string]interface{}{
				"error": emailErr.Error(),
			})
		}
	}()

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *dto.ResetPasswordRequest) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	tokenEntity, err := uow.UserRepository().FindPasswordResetToken(ctx, specification.ByToken{Token: req.Token})
	if err != nil {
		return err
	}
	if tokenEntity == nil {
		return fmt.Errorf("%w: invalid or expired token", ErrInvalidInput)
	}
	if tokenEntity.Used {
		return fmt.Errorf("%w: this password reset link has already been used", ErrInvalidInput)
	}
	if time.Now().After(tokenEntity.ExpiresAt) {
		return fmt.Errorf("%w: this password reset link has expired", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().UpdatePassword(ctx, tokenEntity.UserId, string(hash)); err != nil {
		return err
	}
	if err := uow.UserRepository().MarkResetTokenUsed(ctx, tokenEntity.Id); err != nil {
		return err
	}
	// A password change invalidates every live session for the user.
	if err := uow.SessionRepository().DeleteAllByUserId(ctx, tokenEntity.UserId); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return err
	}

	s.sessionCache.Flush()
	return nil
}
