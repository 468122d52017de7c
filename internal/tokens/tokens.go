package tokens

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/coursebooking/course_backend/internal/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"

	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity a token proves: the user id in Subject, contact
// fields, the role set, and the token-type discriminator. Callers must always
// verify against an explicit expected type so a leaked refresh token can never
// pass where an access token is required.
type Claims struct {
	Email       string   `json:"email"`
	PhoneNumber string   `json:"phone_number"`
	Roles       []string `json:"roles"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Issuer struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

func (i *Issuer) AccessToken(user *models.User) (string, error) {
	return i.sign(user, TypeAccess, AccessTTL, i.AccessSecret)
}

func (i *Issuer) Pair(user *models.User) (*Pair, error) {
	access, err := i.sign(user, TypeAccess, AccessTTL, i.AccessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(user, TypeRefresh, RefreshTTL, i.RefreshSecret)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func (i *Issuer) sign(user *models.User, typ string, ttl time.Duration, secret []byte) (string, error) {
	claims := Claims{
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Roles:       user.Roles,
		TokenType:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// Verify checks signature, expiry and token type. A refresh token presented
// where an access token is expected fails, and vice versa.
func (i *Issuer) Verify(raw, expectedType string) (*Claims, error) {
	secret := i.AccessSecret
	if expectedType == TypeRefresh {
		secret = i.RefreshSecret
	}

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != expectedType {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
