package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"placement-quiz-service/internal/domain"
)

// UserRepository stores registered accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
}

// Accounts handles sign-up, log-in and guest identities.
type Accounts struct {
	users UserRepository
	cost  int
}

func NewAccounts(users UserRepository) *Accounts {
	return &Accounts{users: users, cost: bcrypt.DefaultCost}
}

// Guest returns a fresh guest identity.
func (a *Accounts) Guest() domain.Identity {
	return domain.Identity{
		ID:    "guest_" + uuid.NewString(),
		Guest: true,
	}
}

// Signup registers an account and returns its identity.
func (a *Accounts) Signup(ctx context.Context, email, password string) (domain.Identity, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return domain.Identity{}, fmt.Errorf("%w: email is not valid", domain.ErrInvalidCredentials)
	}
	if len(password) < 6 {
		return domain.Identity{}, fmt.Errorf("%w: password must be at least 6 characters", domain.ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := a.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: u.ID, Email: u.Email}, nil
}

// Login verifies credentials.
func (a *Accounts) Login(ctx context.Context, email, password string) (domain.Identity, error) {
	u, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.Identity{}, domain.ErrInvalidCredentials
	}
	return domain.Identity{ID: u.ID, Email: u.Email}, nil
}

// Resolve confirms a signed-in identity still maps to an account. Guests pass through.
func (a *Accounts) Resolve(ctx context.Context, who domain.Identity) (domain.Identity, error) {
	if who.Guest {
		return who, nil
	}
	u, err := a.users.GetUser(ctx, who.ID)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{ID: u.ID, Email: u.Email}, nil
}
