package helpers

import (
	"errors"
	"fmt"
	"time"

	"go-restaurant-ordering/models"

	"github.com/dgrijalva/jwt-go"
)

const TokenTTL = 24 * time.Hour

var ErrInvalidToken = errors.New("the token is invalid")

type SignedDetails struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	UID      string `json:"uid"`
	UserRole string `json:"user_role"`
	jwt.StandardClaims
}

// TokenHelper signs and validates the HS256 tokens issued by the auth service.
type TokenHelper struct {
	secret []byte
	now    func() time.Time
}

func NewTokenHelper(secret string) *TokenHelper {
	return &TokenHelper{secret: []byte(secret), now: time.Now}
}

func (h *TokenHelper) GenerateToken(who models.Identity) (string, error) {
	claims := SignedDetails{
		Email:    who.Email,
		Name:     who.Name,
		UID:      who.UserID,
		UserRole: who.Role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: h.now().Add(TokenTTL).Unix(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

func (h *TokenHelper) ValidateToken(signedToken string) (models.Identity, error) {
	token, err := jwt.ParseWithClaims(signedToken, &SignedDetails{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return h.secret, nil
	})
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SignedDetails)
	if !ok || !token.Valid {
		return models.Identity{}, ErrInvalidToken
	}
	if claims.ExpiresAt < h.now().Unix() {
		return models.Identity{}, fmt.Errorf("%w: token is expired", ErrInvalidToken)
	}
	if claims.UID == "" {
		return models.Identity{}, fmt.Errorf("%w: no user id", ErrInvalidToken)
	}
	role := claims.UserRole
	if role == "" {
		role = models.RoleCustomer
	}
	return models.Identity{UserID: claims.UID, Email: claims.Email, Name: claims.Name, Role: role}, nil
}
