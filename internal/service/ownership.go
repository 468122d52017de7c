package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/models"
)

// OwnershipService is the ledger of who owns which course. Ownership is
// permanent: there is no revoke.
type OwnershipService struct {
	DB *gorm.DB
}

// WithTx returns a ledger bound to tx so grants can join a caller's
// transaction.
func (s *OwnershipService) WithTx(tx *gorm.DB) *OwnershipService {
	return &OwnershipService{DB: tx}
}

// Grant inserts the (user, course) record. The composite unique index makes
// this an atomic check-and-insert: concurrent duplicate grants resolve to one
// stored row and one conflict, with no read-then-write window.
func (s *OwnershipService) Grant(ctx context.Context, userID, courseID uint) error {
	record := models.OwnershipRecord{UserID: userID, CourseID: courseID}
	if err := s.DB.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: course already owned", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *OwnershipService) IsOwned(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.OwnershipRecord{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasAnyOwner reports whether any user owns the course. Course deletion is
// vetoed while this holds.
func (s *OwnershipService) HasAnyOwner(ctx context.Context, courseID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&models.OwnershipRecord{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
