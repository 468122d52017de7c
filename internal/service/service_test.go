package service

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/email"
	"github.com/coursebooking/course_backend/internal/hash"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/tokens"
)

func testDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.RedemptionCode{},
		&models.OwnershipRecord{},
		&models.Course{},
	))
	return db
}

func testIssuer() *tokens.Issuer {
	return &tokens.Issuer{
		AccessSecret:  []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
}

type fakeSender struct {
	sent []email.Message
	fail bool
}

func (f *fakeSender) Send(msg email.Message) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func createUser(t *testing.T, db *gorm.DB, emailAddr, phone, password string, roles ...string) *models.User {
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)

	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	user := models.User{
		Email:        emailAddr,
		PhoneNumber:  phone,
		PasswordHash: pwHash,
		FullName:     "Test User",
		Roles:        roles,
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createCourse(t *testing.T, db *gorm.DB, title string) *models.Course {
	course := models.Course{
		Title:     title,
		Level:     "beginner",
		Overview:  "overview",
		Introduce: "introduce",
		Price:     100,
		Lessons: []models.CourseContent{
			{Title: "intro", URL: "https://video/intro", Document: "doc-1", IsTrial: true},
			{Title: "deep dive", URL: "https://video/deep", Document: "doc-2", IsTrial: false},
		},
		Exercises: []models.CourseContent{
			{Title: "warmup", URL: "https://ex/warmup", IsTrial: false},
		},
		DurationInSeconds: 3600,
	}
	require.NoError(t, db.Create(&course).Error)
	return &course
}

func newCodeService(db *gorm.DB, sender email.Sender) *CodeService {
	ledger := &OwnershipService{DB: db}
	return &CodeService{
		DB:      db,
		Mail:    sender,
		Issuer:  testIssuer(),
		Ledger:  ledger,
		Catalog: &CourseService{DB: db, Ledger: ledger},
	}
}
