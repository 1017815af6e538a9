package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/andrewpaige1/sysviz-api/models"
)

const TokenTTL = 24 * time.Hour

var ErrMissingSecret = errors.New("auth: JWT secret not set")

// Claims are the application claims carried next to the registered ones
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c *Claims) Validate(ctx context.Context) error {
	return nil
}

// Issuer signs and validates the HS256 tokens handed out at login.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(secret, issuer, audience string) (*Issuer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Issuer{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
		ttl:      TokenTTL,
		now:      time.Now,
	}, nil
}

func (i *Issuer) CreateToken(user *models.User) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub":   strconv.FormatUint(uint64(user.ID), 10),
			"iss":   i.issuer,
			"aud":   []string{i.audience},
			"iat":   now.Unix(),
			"exp":   now.Add(i.ttl).Unix(),
			"name":  user.Username,
			"email": user.Email,
		})

	return token.SignedString(i.secret)
}

// Validator builds the token validator the request middleware runs.
func (i *Issuer) Validator() (*validator.Validator, error) {
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return i.secret, nil
	}

	return validator.New(
		keyFunc,
		validator.HS256,
		i.issuer,
		[]string{i.audience},
		validator.WithCustomClaims(func() validator.CustomClaims {
			return &Claims{}
		}),
		validator.WithAllowedClockSkew(time.Minute),
	)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
