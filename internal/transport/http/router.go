package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/coursebooking/course_backend/internal/handlers"
	authmw "github.com/coursebooking/course_backend/internal/middleware/auth"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	CourseHandler *handlers.CourseHandler
	SearchHandler *handlers.SearchHandler
	AuthMW        *authmw.Middleware
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.GET("/refresh-token", d.AuthHandler.RefreshToken)
	auth.POST("/forgot-password", d.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", d.AuthHandler.ResetPassword)
	auth.GET("/profile", d.AuthHandler.Profile, d.AuthMW.RequireAuth)
	auth.PUT("/profile", d.AuthHandler.UpdateProfile, d.AuthMW.RequireAuth)
	auth.PUT("/change-password", d.AuthHandler.ChangePassword, d.AuthMW.RequireAuth)

	courses := v1.Group("/courses")
	courses.GET("", d.CourseHandler.List)
	courses.GET("/my-courses", d.CourseHandler.MyCourses, d.AuthMW.RequireAuth)
	courses.GET("/:id", d.CourseHandler.Detail, d.AuthMW.OptionalAuth)
	courses.POST("/active", d.CourseHandler.Activate, d.AuthMW.RequireAuth)

	admin := courses.Group("", d.AuthMW.RequireAdmin)
	admin.POST("", d.CourseHandler.Create)
	admin.PUT("/:id", d.CourseHandler.Update)
	admin.DELETE("/:id", d.CourseHandler.Delete)
	admin.POST("/:id/codes", d.CourseHandler.IssueCode)

	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}
}
