package models

import (
	"time"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

const (
	CodeKindPasswordReset    = "PASSWORD_RESET"
	CodeKindCourseActivation = "COURSE_ACTIVATION"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PhoneNumber  string    `gorm:"uniqueIndex;not null"     json:"phone_number"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	FullName     string    `json:"full_name"`
	BirthDay     string    `json:"birth_day"`
	Address      string    `json:"address"`
	AvatarURL    string    `json:"avatar_url"`
	Roles        []string  `gorm:"serializer:json"          json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasRole is nil-safe: a user without a role set has no access.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RedemptionCode is a single-use code. Reset codes reference a user and carry
// an expiry; activation codes reference a course and stay valid until consumed.
// Consumption deletes the row.
type RedemptionCode struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string     `gorm:"uniqueIndex;not null"     json:"code"`
	Kind      string     `gorm:"index;not null"           json:"kind"`
	UserID    *uint      `gorm:"index"                    json:"user_id,omitempty"`
	CourseID  *uint      `gorm:"index"                    json:"course_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (RedemptionCode) TableName() string { return "redemption_codes" }

type OwnershipRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_owner_course"   json:"user_id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_owner_course"   json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (OwnershipRecord) TableName() string { return "ownership_records" }

type CourseContent struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Document string `json:"document"`
	IsTrial  bool   `json:"is_trial"`
}

type CourseTrainer struct {
	FullName    string `json:"full_name"`
	AvatarURL   string `json:"avatar_url"`
	Description string `json:"description"`
}

type Course struct {
	ID                uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Title             string          `gorm:"not null"                 json:"title"`
	Thumbnail         string          `json:"thumbnail"`
	Trainer           CourseTrainer   `gorm:"serializer:json"          json:"trainer"`
	Level             string          `json:"level"`
	Highlights        []string        `gorm:"serializer:json"          json:"highlights"`
	Overview          string          `json:"overview"`
	Introduce         string          `json:"introduce"`
	Lessons           []CourseContent `gorm:"serializer:json"          json:"lessons"`
	Exercises         []CourseContent `gorm:"serializer:json"          json:"exercises"`
	Documents         []CourseContent `gorm:"serializer:json"          json:"documents"`
	Price             float64         `json:"price"`
	NumberOfStudents  int             `gorm:"default:0"                json:"number_of_students"`
	NumberOfLessons   int             `gorm:"default:0"                json:"number_of_lessons"`
	NumberOfExercises int             `gorm:"default:0"                json:"number_of_exercises"`
	NumberOfDocuments int             `gorm:"default:0"                json:"number_of_documents"`
	Tags              []string        `gorm:"serializer:json"          json:"tags"`
	DurationInSeconds int             `json:"duration_in_seconds"`
	IsEndSell         bool            `json:"is_end_sell"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
