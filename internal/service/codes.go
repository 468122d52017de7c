package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/email"
	"github.com/coursebooking/course_backend/internal/hash"
	"github.com/coursebooking/course_backend/internal/logging"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/tokens"
)

const ResetCodeTTL = 5 * time.Minute

// CourseCatalog is the narrow view of the catalog the code manager needs.
type CourseCatalog interface {
	Exists(ctx context.Context, courseID uint) (bool, error)
}

// CodeService drives the redemption-code lifecycle: password-reset codes
// (time-limited, mailed to the user) and course-activation codes (valid until
// consumed). Consumption is a conditional delete checked by rows affected, so
// a code redeems at most once even under concurrent requests.
type CodeService struct {
	DB      *gorm.DB
	Mail    email.Sender
	Issuer  *tokens.Issuer
	Ledger  *OwnershipService
	Catalog CourseCatalog
}

func generateCode() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// IssuePasswordResetCode mints a reset code for the user behind emailAddr and
// mails it. One outstanding code at a time: while an unexpired code exists the
// call fails with a conflict. A delivery failure is returned to the caller but
// the persisted code stays valid, so a retried delivery can still redeem it.
func (s *CodeService) IssuePasswordResetCode(ctx context.Context, emailAddr string) error {
	l := logging.FromContext(ctx).With("svc", "codes.issue_reset")

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", emailAddr).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return err
	}

	var outstanding int64
	err := s.DB.WithContext(ctx).
		Model(&models.RedemptionCode{}).
		Where("kind = ? AND user_id = ? AND expires_at > ?", models.CodeKindPasswordReset, user.ID, time.Now()).
		Count(&outstanding).Error
	if err != nil {
		return err
	}
	if outstanding > 0 {
		return fmt.Errorf("%w: your code has been sent, please try again in 5 minutes", ErrConflict)
	}

	codeString, err := generateCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(ResetCodeTTL)
	code := models.RedemptionCode{
		Code:      codeString,
		Kind:      models.CodeKindPasswordReset,
		UserID:    &user.ID,
		ExpiresAt: &expiresAt,
	}
	if err := s.DB.WithContext(ctx).Create(&code).Error; err != nil {
		return err
	}

	if err := s.Mail.Send(email.Message{
		To:      user.Email,
		Subject: "Reset password code",
		Text:    codeString,
		HTML:    "<b>" + codeString + "</b>",
	}); err != nil {
		// the code is already persisted and stays redeemable
		l.Error("reset code delivery failed", "error", err)
		return fmt.Errorf("send reset code: %w", err)
	}
	return nil
}

// RedeemPasswordResetCode consumes an unexpired reset code and sets the new
// secret in one transaction. Expired, consumed and never-issued codes are
// indistinguishable to the caller. Returns the updated user with a fresh
// token pair so the caller is authenticated right after the reset.
func (s *CodeService) RedeemPasswordResetCode(ctx context.Context, codeString, newPassword, confirm string) (*models.User, *tokens.Pair, error) {
	if newPassword != confirm {
		return nil, nil, fmt.Errorf("%w: password doesn't match", ErrValidation)
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return nil, nil, err
	}

	var user models.User
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var code models.RedemptionCode
		err := tx.
			Where("code = ? AND kind = ? AND expires_at > ?", codeString, models.CodeKindPasswordReset, time.Now()).
			First(&code).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: invalid code", ErrNotFound)
			}
			return err
		}

		// consumption point: the delete must win or someone else redeemed it
		res := tx.Delete(&models.RedemptionCode{}, code.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: invalid code", ErrNotFound)
		}

		upd := tx.Model(&models.User{}).Where("id = ?", code.UserID).Update("password_hash", pwHash)
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return fmt.Errorf("%w: user not found", ErrNotFound)
		}
		return tx.First(&user, code.UserID).Error
	})
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.Issuer.Pair(&user)
	if err != nil {
		return nil, nil, err
	}
	return &user, pair, nil
}

// IssueActivationCode mints a code unlocking courseID. Activation codes carry
// no expiry: they stay valid until consumed.
func (s *CodeService) IssueActivationCode(ctx context.Context, courseID uint) (*models.RedemptionCode, error) {
	exists, err := s.Catalog.Exists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: course not found", ErrNotFound)
	}

	codeString, err := generateCode()
	if err != nil {
		return nil, err
	}
	code := models.RedemptionCode{
		Code:     codeString,
		Kind:     models.CodeKindCourseActivation,
		CourseID: &courseID,
	}
	if err := s.DB.WithContext(ctx).Create(&code).Error; err != nil {
		return nil, err
	}
	return &code, nil
}

// RedeemActivationCode grants ownership of the code's course to the user and
// consumes the code, in that order: if the grant fails the transaction rolls
// back and the code remains redeemable. The ledger's unique index plus the
// rows-affected check on the delete make the whole exchange at-most-once.
func (s *CodeService) RedeemActivationCode(ctx context.Context, userID uint, codeString string) (*models.Course, error) {
	var exists int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: user not found", ErrNotFound)
	}

	var course models.Course
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var code models.RedemptionCode
		err := tx.
			Where("code = ? AND kind = ?", codeString, models.CodeKindCourseActivation).
			First(&code).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: code not found", ErrNotFound)
			}
			return err
		}

		if err := tx.First(&course, code.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: course not found", ErrNotFound)
			}
			return err
		}

		owned, err := s.Ledger.WithTx(tx).IsOwned(ctx, userID, course.ID)
		if err != nil {
			return err
		}
		if owned {
			return fmt.Errorf("%w: the course has been activated", ErrConflict)
		}

		if err := s.Ledger.WithTx(tx).Grant(ctx, userID, course.ID); err != nil {
			return err
		}

		if err := tx.Model(&course).
			UpdateColumn("number_of_students", gorm.Expr("number_of_students + 1")).Error; err != nil {
			return err
		}

		// consume last: a lost race here rolls the grant back too
		res := tx.Delete(&models.RedemptionCode{}, code.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: code not found", ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}
