package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"placement-quiz-service/internal/domain"
)

// AuthService issues and verifies the signed identity tokens carried by browsers.
type AuthService struct {
	hmac []byte
	ttl  time.Duration
	now  func() time.Time
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims carries the identity in the token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest"`
	jwt.RegisteredClaims
}

// TTL is the token lifetime.
func (a *AuthService) TTL() time.Duration {
	return a.ttl
}

// IssueJWT signs a token for who.
func (a *AuthService) IssueJWT(who domain.Identity) (string, error) {
	now := a.now()
	claims := &Claims{
		Email: who.Email,
		Guest: who.Guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.ID,
			Issuer:    "placement-quiz",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

// Parse verifies tokenStr and returns the identity it carries.
func (a *AuthService) Parse(tokenStr string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return domain.Identity{}, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Subject == "" {
		return domain.Identity{}, errors.New("invalid token claims")
	}
	return domain.Identity{ID: c.Subject, Email: c.Email, Guest: c.Guest}, nil
}
