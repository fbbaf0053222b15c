package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"placement-quiz-service/internal/domain"
)

// ResultStore keeps finished reports and accounts in process memory (dev and tests).
type ResultStore struct {
	mu      sync.RWMutex
	clock   func() time.Time
	results map[string][]domain.StoredResult
	users   map[string]domain.User // by ID
	emails  map[string]string      // lowercased email -> ID
}

func NewResultStore() *ResultStore {
	return &ResultStore{
		clock:   time.Now,
		results: make(map[string][]domain.StoredResult),
		users:   make(map[string]domain.User),
		emails:  make(map[string]string),
	}
}

func (s *ResultStore) SaveResult(_ context.Context, who domain.Identity, data domain.ReportData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[who.ID] = append(s.results[who.ID], domain.StoredResult{
		ID:        uuid.NewString(),
		UserID:    who.ID,
		Data:      data,
		CreatedAt: s.clock(),
	})
	return nil
}

func (s *ResultStore) ListResults(_ context.Context, userID string, limit int) ([]domain.StoredResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.results[userID]
	out := make([]domain.StoredResult, len(stored))
	copy(out, stored)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ResultStore) CreateUser(_ context.Context, email, passwordHash string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	norm := strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.emails[norm]; ok {
		return domain.User{}, domain.ErrEmailTaken
	}
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        norm,
		PasswordHash: passwordHash,
		CreatedAt:    s.clock(),
	}
	s.users[u.ID] = u
	s.emails[norm] = u.ID
	return u, nil
}

func (s *ResultStore) GetUserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *ResultStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}
