package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"ajo/config"
	"ajo/internal/auth"
	"ajo/internal/domain"
	"ajo/internal/models"
	"ajo/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailExists  = newError(KindStateConflict, "EMAIL_EXISTS", "email already registered")
	ErrInvalidCreds = newError(KindForbidden, "INVALID_CREDENTIALS", "invalid email or password")
)

type AuthService struct {
	cfg   *config.Config
	repos *repository.Repositories
}

func NewAuthService(cfg *config.Config, repos *repository.Repositories) *AuthService {
	return &AuthService{cfg: cfg, repos: repos}
}

type RegisterInput struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Register creates the user and an empty wallet, then issues an access token.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrValidation.WithMessage("invalid email address")
	}
	if len(in.Password) < 8 {
		return nil, "", ErrValidation.WithMessage("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", internal(err)
	}
	u := &models.User{
		Email:            email,
		Phone:            strings.TrimSpace(in.Phone),
		FirstName:        strings.TrimSpace(in.FirstName),
		LastName:         strings.TrimSpace(in.LastName),
		PasswordHash:     string(hash),
		Role:             domain.RoleUser,
		ProfileLevel:     1,
		WithdrawalStatus: domain.WithdrawalInactive,
	}
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Users.GetByEmail(email); err == nil {
			return ErrEmailExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Users.Create(u); err != nil {
			return err
		}
		_, err := tx.Wallets.GetOrCreate(u.ID)
		return err
	})
	if err != nil {
		return nil, "", internal(err)
	}
	token, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", internal(err)
	}
	return u, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	u, err := s.repos.WithContext(ctx).Users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", internal(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	token, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", internal(err)
	}
	return u, token, nil
}

// ChangePassword updates the user's password. Requires current password verification.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint, currentPassword, newPassword string) error {
	repos := s.repos.WithContext(ctx)
	u, err := repos.Users.GetByID(userID)
	if err != nil {
		return ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCreds
	}
	if len(newPassword) < 8 {
		return ErrValidation.WithMessage("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return internal(err)
	}
	u.PasswordHash = string(hash)
	return internal(repos.Users.Update(u))
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	u, err := s.repos.WithContext(ctx).Users.GetByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return u, internal(err)
}

func (s *AuthService) SetFCMToken(ctx context.Context, userID uint, token string) error {
	return internal(s.repos.WithContext(ctx).Users.SetFCMToken(userID, strings.TrimSpace(token)))
}

// EnsureAdmin creates a platform admin, or promotes the existing account with that email.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	repos := s.repos.WithContext(ctx)
	u, err := repos.Users.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		u.Role = domain.RoleAdmin
		return u, internal(repos.Users.Update(u))
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal(err)
	}
	u, _, err = s.Register(ctx, RegisterInput{Email: email, Password: password, FirstName: "Admin"})
	if err != nil {
		return nil, err
	}
	u.Role = domain.RoleAdmin
	u.ProfileLevel = 3
	return u, internal(repos.Users.Update(u))
}
