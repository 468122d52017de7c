package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/coursebooking/course_backend/internal/middleware/auth"
	"github.com/coursebooking/course_backend/internal/mykafka"
	"github.com/coursebooking/course_backend/internal/service"
)

type AuthHandler struct {
	Auth     *service.AuthService
	Codes    *service.CodeService
	Producer *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email       string `json:"email"`
		PhoneNumber string `json:"phone_number"`
		FullName    string `json:"full_name"`
		Password    string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.Auth.Register(c.Request().Context(), req.Email, req.PhoneNumber, req.FullName, req.Password)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, user.Email, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.Auth.Authenticate(c.Request().Context(), req.Identifier, req.Password)
	if err != nil {
		return httpError(err)
	}
	pair, err := h.Auth.Issuer.Pair(user)
	if err != nil {
		return httpError(err)
	}

	h.publish(c, user.Email, map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})
	return c.JSON(http.StatusOK, echo.Map{"user": user, "token": pair})
}

// RefreshToken exchanges a refresh token from the Authorization header for a
// new access token.
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	raw := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(raw) <= len(prefix) || raw[:len(prefix)] != prefix {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	access, err := h.Auth.RefreshAccessToken(c.Request().Context(), raw[len(prefix):])
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"access_token": access})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}
	user, err := h.Auth.GetByID(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req struct {
		PhoneNumber string `json:"phone_number"`
		FullName    string `json:"full_name"`
		BirthDay    string `json:"birth_day"`
		AvatarURL   string `json:"avatar_url"`
		Address     string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.Auth.UpdateProfile(c.Request().Context(), userID, service.ProfileUpdate{
		PhoneNumber: req.PhoneNumber,
		FullName:    req.FullName,
		BirthDay:    req.BirthDay,
		AvatarURL:   req.AvatarURL,
		Address:     req.Address,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	var req struct {
		OldPassword     string `json:"old_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.Auth.ChangePassword(c.Request().Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user, "token": pair})
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.Codes.IssuePasswordResetCode(c.Request().Context(), req.Email); err != nil {
		return httpError(err)
	}

	h.publish(c, req.Email, map[string]any{
		"type":  "password_reset_requested",
		"email": req.Email,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "reset code sent"})
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Code            string `json:"code"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, pair, err := h.Codes.RedeemPasswordResetCode(c.Request().Context(), req.Code, req.Password, req.ConfirmPassword)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": user, "token": pair})
}

func callerID(c echo.Context) (uint, error) {
	claims := authmw.ClaimsFrom(c)
	if claims == nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
	}
	id, err := claims.UserID()
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}
	return id, nil
}
