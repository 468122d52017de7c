package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authmw "github.com/coursebooking/course_backend/internal/middleware/auth"
	"github.com/coursebooking/course_backend/internal/models"
	"github.com/coursebooking/course_backend/internal/mykafka"
	"github.com/coursebooking/course_backend/internal/service"
)

type courseFixture struct {
	e       *echo.Echo
	db      *gorm.DB
	handler *CourseHandler
	mw      *authmw.Middleware
}

func newCourseFixture(t *testing.T) *courseFixture {
	db := initTestDB(t)
	issuer := testIssuer()
	ledger := &service.OwnershipService{DB: db}
	courses := &service.CourseService{DB: db, Ledger: ledger}
	return &courseFixture{
		e:  echo.New(),
		db: db,
		handler: &CourseHandler{
			Courses: courses,
			Codes: &service.CodeService{
				DB:      db,
				Mail:    &fakeSender{},
				Issuer:  issuer,
				Ledger:  ledger,
				Catalog: courses,
			},
			Producer: &mykafka.Producer{},
		},
		mw: &authmw.Middleware{Issuer: issuer},
	}
}

func (f *courseFixture) register(t *testing.T, emailAddr, phone string, roles ...string) (*models.User, string) {
	auth := &service.AuthService{DB: f.db, Issuer: f.mw.Issuer}
	user, err := auth.Register(context.Background(), emailAddr, phone, "Test User", "password")
	require.NoError(t, err)

	if len(roles) > 0 {
		user.Roles = roles
		require.NoError(t, f.db.Save(user).Error)
	}

	access, err := f.mw.Issuer.AccessToken(user)
	require.NoError(t, err)
	return user, access
}

func (f *courseFixture) seedCourse(t *testing.T, title string) *models.Course {
	course := models.Course{
		Title: title,
		Lessons: []models.CourseContent{
			{Title: "trial", URL: "https://video/trial", IsTrial: true},
			{Title: "paid", URL: "https://video/paid", IsTrial: false},
		},
	}
	require.NoError(t, f.db.Create(&course).Error)
	return &course
}

func TestCreateCourseRequiresAdmin(t *testing.T) {
	f := newCourseFixture(t)
	_, userToken := f.register(t, "user@example.com", "+4470000001")
	_, adminToken := f.register(t, "admin@example.com", "+4470000002", models.RoleUser, models.RoleAdmin)

	create := f.mw.RequireAdmin(f.handler.Create)

	c, _ := jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses", map[string]any{"title": "New course"})
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+userToken)
	require.Equal(t, http.StatusForbidden, httpCode(t, create(c)))

	c, rec := jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses", map[string]any{"title": "New course"})
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
	require.NoError(t, create(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, _ = jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses", map[string]any{"title": ""})
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
	require.Equal(t, http.StatusBadRequest, httpCode(t, create(c)))
}

func TestCourseDetailRedaction(t *testing.T) {
	f := newCourseFixture(t)
	course := f.seedCourse(t, "Detail course")
	user, token := f.register(t, "viewer@example.com", "+4470000003")

	detail := f.mw.OptionalAuth(f.handler.Detail)

	fetch := func(authHeader string) models.Course {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authHeader != "" {
			req.Header.Set(echo.HeaderAuthorization, authHeader)
		}
		rec := httptest.NewRecorder()
		c := f.e.NewContext(req, rec)
		c.SetPath("/api/v1/courses/:id")
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatUint(uint64(course.ID), 10))
		require.NoError(t, detail(c))
		require.Equal(t, http.StatusOK, rec.Code)

		var got models.Course
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		return got
	}

	// anonymous: paid lesson locator is blanked
	got := fetch("")
	require.Equal(t, "https://video/trial", got.Lessons[0].URL)
	require.Empty(t, got.Lessons[1].URL)

	// authenticated non-owner: same view
	got = fetch("Bearer " + token)
	require.Empty(t, got.Lessons[1].URL)

	// owner: full view
	ledger := &service.OwnershipService{DB: f.db}
	require.NoError(t, ledger.Grant(context.Background(), user.ID, course.ID))
	got = fetch("Bearer " + token)
	require.Equal(t, "https://video/paid", got.Lessons[1].URL)
}

func TestActivateHandler(t *testing.T) {
	f := newCourseFixture(t)
	course := f.seedCourse(t, "Activate me")
	_, token := f.register(t, "student@example.com", "+4470000004")

	code, err := f.handler.Codes.IssueActivationCode(context.Background(), course.ID)
	require.NoError(t, err)

	activate := f.mw.RequireAuth(f.handler.Activate)

	c, _ := jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses/active", map[string]string{"code": code.Code})
	require.Equal(t, http.StatusUnauthorized, httpCode(t, activate(c)))

	c, rec := jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses/active", map[string]string{"code": code.Code})
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	require.NoError(t, activate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Course
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, course.ID, got.ID)

	// spent code
	c, _ = jsonRequest(t, f.e, http.MethodPost, "/api/v1/courses/active", map[string]string{"code": code.Code})
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	require.Equal(t, http.StatusNotFound, httpCode(t, activate(c)))
}

func TestDeleteCourseHandler(t *testing.T) {
	f := newCourseFixture(t)
	course := f.seedCourse(t, "Deletable")
	owned := f.seedCourse(t, "Owned")
	user, _ := f.register(t, "owner@example.com", "+4470000005")
	_, adminToken := f.register(t, "admin2@example.com", "+4470000006", models.RoleUser, models.RoleAdmin)

	ledger := &service.OwnershipService{DB: f.db}
	require.NoError(t, ledger.Grant(context.Background(), user.ID, owned.ID))

	del := f.mw.RequireAdmin(f.handler.Delete)

	remove := func(id string) (int, error) {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
		rec := httptest.NewRecorder()
		c := f.e.NewContext(req, rec)
		c.SetPath("/api/v1/courses/:id")
		c.SetParamNames("id")
		c.SetParamValues(id)
		err := del(c)
		return rec.Code, err
	}

	status, err := remove(strconv.FormatUint(uint64(course.ID), 10))
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, status)

	_, err = remove(strconv.FormatUint(uint64(owned.ID), 10))
	require.Equal(t, http.StatusConflict, httpCode(t, err))

	_, err = remove("999")
	require.Equal(t, http.StatusNotFound, httpCode(t, err))

	_, err = remove("zero")
	require.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestIssueCodeHandler(t *testing.T) {
	f := newCourseFixture(t)
	course := f.seedCourse(t, "Code source")
	_, adminToken := f.register(t, "admin3@example.com", "+4470000007", models.RoleUser, models.RoleAdmin)

	issue := f.mw.RequireAdmin(f.handler.IssueCode)

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	c.SetPath("/api/v1/courses/:id/codes")
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(course.ID), 10))

	require.NoError(t, issue(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Code     string `json:"code"`
		CourseID uint   `json:"course_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Code, 32)
	require.Equal(t, course.ID, resp.CourseID)
}
