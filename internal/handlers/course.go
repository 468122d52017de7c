package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/coursebooking/course_backend/internal/middleware/auth"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/mykafka"
	"github.com/coursebooking/course_backend/internal/service"
)

type CourseHandler struct {
	Courses  *service.CourseService
	Codes    *service.CodeService
	Producer *mykafka.Producer
}

func (h *CourseHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "course_events", fmt.Sprint(event["courseID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func courseID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid course id")
	}
	return uint(id), nil
}

func listOptions(c echo.Context) service.CourseListOptions {
	return service.CourseListOptions{
		Title:        c.QueryParam("title"),
		Level:        c.QueryParam("level"),
		FromDuration: parseIntPtr(c.QueryParam("fromDuration")),
		ToDuration:   parseIntPtr(c.QueryParam("toDuration")),
		SortField:    c.QueryParam("sortField"),
		SortType:     c.QueryParam("sortType"),
		Page:         parseIntDefault(c.QueryParam("page"), 1),
		PageSize:     parseIntDefault(c.QueryParam("pageSize"), 10),
	}
}

func (h *CourseHandler) Create(c echo.Context) error {
	var req models.Course
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}

	course, err := h.Courses.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":     "course_created",
		"courseID": course.ID,
		"title":    course.Title,
	})
	return c.JSON(http.StatusCreated, course)
}

func (h *CourseHandler) Update(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}

	var req models.Course
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	course, err := h.Courses.Update(c.Request().Context(), id, req)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":     "course_updated",
		"courseID": course.ID,
	})
	return c.JSON(http.StatusOK, course)
}

func (h *CourseHandler) Delete(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}

	if err := h.Courses.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":     "course_deleted",
		"courseID": id,
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *CourseHandler) List(c echo.Context) error {
	opts := listOptions(c)
	courses, total, err := h.Courses.List(c.Request().Context(), opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse(courses, total, opts))
}

func (h *CourseHandler) MyCourses(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	opts := listOptions(c)
	courses, total, err := h.Courses.MyCourses(c.Request().Context(), userID, opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse(courses, total, opts))
}

func listResponse(courses []models.Course, total int64, opts service.CourseListOptions) echo.Map {
	size := opts.PageSize
	if size <= 0 || size > 100 {
		size = 10
	}
	return echo.Map{
		"data": courses,
		"meta": echo.Map{
			"page":        opts.Page,
			"page_size":   size,
			"total":       total,
			"total_pages": (total + int64(size) - 1) / int64(size),
		},
	}
}

// Detail serves the course through the redactor: anonymous and non-owning
// callers get non-trial locators blanked.
func (h *CourseHandler) Detail(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}

	course, err := h.Courses.View(c.Request().Context(), id, authmw.ClaimsFrom(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, course)
}

// Activate redeems an activation code for the authenticated caller.
func (h *CourseHandler) Activate(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	course, err := h.Codes.RedeemActivationCode(c.Request().Context(), userID, req.Code)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, map[string]any{
		"type":     "course_activated",
		"courseID": course.ID,
		"userID":   userID,
	})
	return c.JSON(http.StatusOK, course)
}

// IssueCode mints an activation code for a course (admin only).
func (h *CourseHandler) IssueCode(c echo.Context) error {
	id, err := courseID(c)
	if err != nil {
		return err
	}

	code, err := h.Codes.IssueActivationCode(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"code": code.Code, "course_id": id})
}
