package service

import (
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/tokens"
)

// RedactCourse returns a response-scoped copy of course with non-public
// content locators blanked. Admins and owners see everything; everyone else
// (including anonymous callers) only keeps URLs on trial items. The stored
// course is never touched.
func RedactCourse(course *models.Course, viewer *tokens.Claims, owned bool) *models.Course {
	if course == nil {
		return nil
	}

	isAdmin := viewer != nil && viewer.HasRole(models.RoleAdmin)
	if isAdmin || (viewer != nil && owned) {
		return course
	}

	redacted := *course
	redacted.Lessons = blankNonTrial(course.Lessons)
	redacted.Exercises = blankNonTrial(course.Exercises)
	redacted.Documents = blankNonTrial(course.Documents)
	return &redacted
}

func blankNonTrial(items []models.CourseContent) []models.CourseContent {
	if len(items) == 0 {
		return items
	}
	out := make([]models.CourseContent, len(items))
	copy(out, items)
	for i := range out {
		if !out[i].IsTrial {
			out[i].URL = ""
		}
	}
	return out
}
