package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/hash"
	"github.com/coursebooking/course_backend/internal/logging"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/tokens"
)

type AuthService struct {
	DB     *gorm.DB
	Issuer *tokens.Issuer
}

// EnsureAdmin seeds the configured admin account once, at process start.
// It only creates when no users exist at all, so re-running is a no-op.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, phone, password string) error {
	l := logging.FromContext(ctx).With("svc", "auth.ensure_admin")

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return err
	}
	if total > 0 {
		return nil
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Email:        email,
		PhoneNumber:  phone,
		PasswordHash: pwHash,
		FullName:     "Admin",
		Roles:        []string{models.RoleUser, models.RoleAdmin},
	}
	if err := s.DB.WithContext(ctx).Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// another instance seeded first
			return nil
		}
		return err
	}
	l.Info("seeded admin user", "email", email)
	return nil
}

func (s *AuthService) Register(ctx context.Context, email, phone, fullName, password string) (*models.User, error) {
	pwHash, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		PhoneNumber:  phone,
		FullName:     fullName,
		PasswordHash: pwHash,
		Roles:        []string{models.RoleUser},
	}
	// unique indexes on email and phone make this an atomic check-and-insert
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: email or phone number already exists", ErrConflict)
		}
		return nil, err
	}
	return &user, nil
}

// Authenticate resolves the identifier against email or phone and checks the
// secret. Unknown users and bad passwords fail differently on purpose: the
// original contract reports "user not found" separately from a bad credential.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.authenticate")

	var user models.User
	err := s.DB.WithContext(ctx).
		Where("email = ? OR phone_number = ?", identifier, identifier).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "reason", "incorrect password")
		return nil, fmt.Errorf("%w: incorrect password", ErrUnauthorized)
	}
	return &user, nil
}

func (s *AuthService) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// RefreshAccessToken exchanges a valid refresh token for a new access token.
// Claims are re-read from the stored user so role changes take effect on the
// next refresh.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.Issuer.Verify(refreshToken, tokens.TypeRefresh)
	if err != nil {
		return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}
	id, err := claims.UserID()
	if err != nil {
		return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
		}
		return "", err
	}
	return s.Issuer.AccessToken(user)
}

type ProfileUpdate struct {
	PhoneNumber string
	FullName    string
	BirthDay    string
	AvatarURL   string
	Address     string
}

func (s *AuthService) UpdateProfile(ctx context.Context, id uint, patch ProfileUpdate) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.PhoneNumber = patch.PhoneNumber
	user.FullName = patch.FullName
	user.BirthDay = patch.BirthDay
	user.AvatarURL = patch.AvatarURL
	user.Address = patch.Address

	if err := s.DB.WithContext(ctx).Save(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: phone number already exists", ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, id uint, oldPassword, newPassword, confirm string) (*models.User, *tokens.Pair, error) {
	if newPassword != confirm {
		return nil, nil, fmt.Errorf("%w: password doesn't match", ErrValidation)
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		return nil, nil, fmt.Errorf("%w: incorrect password", ErrUnauthorized)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return nil, nil, err
	}
	if err := s.DB.WithContext(ctx).Model(user).Update("password_hash", pwHash).Error; err != nil {
		return nil, nil, err
	}

	pair, err := s.Issuer.Pair(user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}
