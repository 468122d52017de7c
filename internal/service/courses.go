package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/logging"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/service/search"
	"github.com/coursebooking/course_backend/internal/tokens"
)

type CourseService struct {
	DB      *gorm.DB
	Ledger  *OwnershipService
	ES      *elasticsearch.Client
	ESIndex string
}

type CourseListOptions struct {
	Title        string
	Level        string
	FromDuration *int
	ToDuration   *int
	SortField    string
	SortType     string
	Page         int
	PageSize     int
}

func (s *CourseService) Create(ctx context.Context, course models.Course) (*models.Course, error) {
	course.ID = 0
	course.NumberOfStudents = 0
	course.NumberOfLessons = len(course.Lessons)
	course.NumberOfExercises = len(course.Exercises)
	course.NumberOfDocuments = len(course.Documents)

	if err := s.DB.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, err
	}
	s.indexCourse(ctx, &course)
	return &course, nil
}

func (s *CourseService) Update(ctx context.Context, id uint, patch models.Course) (*models.Course, error) {
	var course models.Course
	if err := s.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: course not found", ErrNotFound)
		}
		return nil, err
	}

	patch.ID = course.ID
	patch.NumberOfStudents = course.NumberOfStudents
	patch.NumberOfLessons = len(patch.Lessons)
	patch.NumberOfExercises = len(patch.Exercises)
	patch.NumberOfDocuments = len(patch.Documents)
	patch.CreatedAt = course.CreatedAt

	if err := s.DB.WithContext(ctx).Save(&patch).Error; err != nil {
		return nil, err
	}
	s.indexCourse(ctx, &patch)
	return &patch, nil
}

// Delete removes a course unless someone owns it. The owners check and the
// delete are not transactional with concurrent activations: a purchase racing
// a delete may land on a vanished course, which is accepted.
func (s *CourseService) Delete(ctx context.Context, id uint) error {
	owned, err := s.Ledger.HasAnyOwner(ctx, id)
	if err != nil {
		return err
	}
	if owned {
		return fmt.Errorf("%w: can not delete an owned course", ErrConflict)
	}

	res := s.DB.WithContext(ctx).Delete(&models.Course{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: course not found", ErrNotFound)
	}
	s.deindexCourse(ctx, id)
	return nil
}

func (s *CourseService) Get(ctx context.Context, id uint) (*models.Course, error) {
	var course models.Course
	if err := s.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: course not found", ErrNotFound)
		}
		return nil, err
	}
	return &course, nil
}

func (s *CourseService) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// View returns the course as the caller is entitled to see it. viewer may be
// nil for anonymous browsing.
func (s *CourseService) View(ctx context.Context, id uint, viewer *tokens.Claims) (*models.Course, error) {
	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	owned := false
	if viewer != nil {
		userID, err := viewer.UserID()
		if err == nil {
			owned, err = s.Ledger.IsOwned(ctx, userID, course.ID)
			if err != nil {
				return nil, err
			}
		}
	}
	return RedactCourse(course, viewer, owned), nil
}

func (s *CourseService) List(ctx context.Context, opts CourseListOptions) ([]models.Course, int64, error) {
	q := s.DB.WithContext(ctx).Model(&models.Course{}).Where("is_end_sell = ?", false)
	return s.list(q, opts)
}

// MyCourses lists the caller's owned courses.
func (s *CourseService) MyCourses(ctx context.Context, userID uint, opts CourseListOptions) ([]models.Course, int64, error) {
	sub := s.DB.WithContext(ctx).
		Model(&models.OwnershipRecord{}).
		Select("course_id").
		Where("user_id = ?", userID)
	q := s.DB.WithContext(ctx).Model(&models.Course{}).Where("id IN (?)", sub)
	return s.list(q, opts)
}

func (s *CourseService) list(q *gorm.DB, opts CourseListOptions) ([]models.Course, int64, error) {
	if opts.Title != "" {
		q = q.Where("title LIKE ?", "%"+opts.Title+"%")
	}
	if opts.Level != "" && opts.Level != "all" {
		q = q.Where("level = ?", opts.Level)
	}
	if opts.FromDuration != nil && opts.ToDuration != nil {
		q = q.Where("duration_in_seconds >= ? AND duration_in_seconds < ?", *opts.FromDuration, *opts.ToDuration)
	} else if opts.FromDuration != nil {
		q = q.Where("duration_in_seconds >= ?", *opts.FromDuration)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortField := opts.SortField
	switch sortField {
	case "title", "price", "duration_in_seconds", "number_of_students", "created_at":
	default:
		sortField = "created_at"
	}
	sortType := "ASC"
	if opts.SortType == "desc" {
		sortType = "DESC"
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	size := opts.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}

	var courses []models.Course
	err := q.
		Order(sortField + " " + sortType).
		Offset((page - 1) * size).
		Limit(size).
		Find(&courses).Error
	if err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// ES sync is best effort: the catalog row is the source of truth and a failed
// index write only degrades search until the next mutation.
func (s *CourseService) indexCourse(ctx context.Context, course *models.Course) {
	if s.ES == nil {
		return
	}
	if err := search.IndexCourse(ctx, s.ES, s.ESIndex, course); err != nil {
		logging.FromContext(ctx).Error("es index failed", "course_id", course.ID, "error", err)
	}
}

func (s *CourseService) deindexCourse(ctx context.Context, id uint) {
	if s.ES == nil {
		return
	}
	if err := search.DeleteCourse(ctx, s.ES, s.ESIndex, id); err != nil {
		logging.FromContext(ctx).Error("es delete failed", "course_id", id, "error", err)
	}
}
