package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"placement-quiz-service/internal/domain"
)

// SessionRepository abstracts how quiz sessions are stored between requests (in-memory, Redis, etc).
type SessionRepository interface {
	Get(ctx context.Context, key string) (*Session, bool, error)
	Put(ctx context.Context, key string, session *Session) error
	Delete(ctx context.Context, key string) error
}

// ReportRenderer turns aggregated results into a Markdown narrative.
type ReportRenderer interface {
	Render(ctx context.Context, data domain.ReportData) (string, error)
}

// ResultRepository stores finished reports per user.
type ResultRepository interface {
	SaveResult(ctx context.Context, who domain.Identity, data domain.ReportData) error
	ListResults(ctx context.Context, userID string, limit int) ([]domain.StoredResult, error)
}

// Settings tunes the quiz use cases.
type Settings struct {
	PerQuestion       time.Duration
	GenerationTimeout time.Duration
	ReportTimeout     time.Duration
	PersistTimeout    time.Duration
}

// DefaultSettings mirrors the values used when the config leaves them empty.
func DefaultSettings() Settings {
	return Settings{
		PerQuestion:       60 * time.Second,
		GenerationTimeout: 45 * time.Second,
		ReportTimeout:     60 * time.Second,
		PersistTimeout:    10 * time.Second,
	}
}

// StartRequest carries the setup form of a new quiz.
type StartRequest struct {
	Subjects     []string
	Difficulty   domain.Difficulty
	NumQuestions int
	Timed        bool
}

// SessionView is what the quiz page needs to render an active session.
type SessionView struct {
	Questions        []domain.PublicQuestion `json:"questions"`
	TotalQuestions   int                     `json:"total_questions"`
	Timed            bool                    `json:"timed_test"`
	RemainingSeconds *float64                `json:"time_left"`
	Answered         []int                   `json:"answered"`
}

// QuizService contains the core quiz use cases.
type QuizService struct {
	sessions SessionRepository
	source   QuestionSource
	renderer ReportRenderer
	toHTML   func(string) (string, error)
	results  ResultRepository
	settings Settings
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	background sync.WaitGroup
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithRenderer sets the narrative renderer and the Markdown to HTML converter.
func WithRenderer(r ReportRenderer, toHTML func(string) (string, error)) Option {
	return func(s *QuizService) {
		s.renderer = r
		s.toHTML = toHTML
	}
}

// WithResults enables persisting reports of signed-in users.
func WithResults(r ResultRepository) Option {
	return func(s *QuizService) { s.results = r }
}

// WithSettings overrides DefaultSettings.
func WithSettings(cfg Settings) Option {
	return func(s *QuizService) { s.settings = cfg }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithRand fixes the shuffle source.
func WithRand(rnd *rand.Rand) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

func NewQuizService(store SessionRepository, source QuestionSource, opts ...Option) *QuizService {
	s := &QuizService{
		sessions: store,
		source:   source,
		settings: DefaultSettings(),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds a new question set and activates a session under key, replacing any attempt in progress.
func (s *QuizService) Start(ctx context.Context, key string, req StartRequest) (SessionView, error) {
	genCtx := ctx
	if s.settings.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.settings.GenerationTimeout)
		defer cancel()
	}

	s.rndMu.Lock()
	seed := s.rnd.Int63()
	s.rndMu.Unlock()

	questions := AssembleQuestionSet(genCtx, s.source, req.Subjects, req.Difficulty, req.NumQuestions, rand.New(rand.NewSource(seed)))

	session := NewSessionWithClock(s.now)
	if err := session.Start(questions, req.Timed, s.settings.PerQuestion); err != nil {
		return SessionView{}, err
	}
	if err := s.sessions.Put(ctx, key, session); err != nil {
		return SessionView{}, fmt.Errorf("store session: %w", err)
	}
	log.Printf("quiz started for %s: %d questions, timed=%v", key, len(questions), req.Timed)
	return viewOf(session)
}

// Current returns the active session's questions and remaining time.
func (s *QuizService) Current(ctx context.Context, key string) (SessionView, error) {
	session, err := s.active(ctx, key)
	if err != nil {
		return SessionView{}, err
	}
	return viewOf(session)
}

// SubmitAnswer records an answer and returns the correct label and solution.
func (s *QuizService) SubmitAnswer(ctx context.Context, key string, sub domain.AnswerSubmission) (domain.AnswerOutcome, error) {
	session, err := s.active(ctx, key)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	outcome, err := session.SubmitAnswer(sub)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	if err := s.sessions.Put(ctx, key, session); err != nil {
		return domain.AnswerOutcome{}, fmt.Errorf("store session: %w", err)
	}
	return outcome, nil
}

// Remaining reports the advisory time left; ok is false for untimed sessions.
func (s *QuizService) Remaining(ctx context.Context, key string) (time.Duration, bool, error) {
	session, err := s.active(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return session.Remaining()
}

// Finish aggregates the attempt, clears the session and persists the report
// in the background for signed-in users.
func (s *QuizService) Finish(ctx context.Context, key string, who domain.Identity, timedOut bool) (domain.ReportData, error) {
	session, err := s.active(ctx, key)
	if err != nil {
		return domain.ReportData{}, err
	}
	report, err := session.Finish()
	if err != nil {
		return domain.ReportData{}, err
	}
	report.StudentName = who.DisplayName()
	report.TimedOut = timedOut

	if err := s.sessions.Delete(ctx, key); err != nil {
		log.Printf("clear session %s: %v", key, err)
	}

	if s.results != nil && !who.Guest && who.ID != "" {
		s.persist(who, report)
	}
	return report, nil
}

// Report renders the narrative for a finished attempt.
func (s *QuizService) Report(ctx context.Context, data domain.ReportData) (domain.Report, error) {
	if s.renderer == nil {
		return domain.Report{}, fmt.Errorf("%w: no renderer configured", domain.ErrReportFailed)
	}
	if s.settings.ReportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.ReportTimeout)
		defer cancel()
	}

	md, err := s.renderer.Render(ctx, data)
	if err != nil {
		if !errors.Is(err, domain.ErrReportFailed) {
			err = fmt.Errorf("%w: %v", domain.ErrReportFailed, err)
		}
		return domain.Report{}, err
	}
	out := domain.Report{Markdown: md}
	if s.toHTML != nil {
		html, err := s.toHTML(md)
		if err != nil {
			return domain.Report{}, fmt.Errorf("%w: convert markdown: %v", domain.ErrReportFailed, err)
		}
		out.HTML = html
	}
	return out, nil
}

// History lists stored results for a signed-in user, newest first.
func (s *QuizService) History(ctx context.Context, who domain.Identity, limit int) ([]domain.StoredResult, error) {
	if who.Guest || who.ID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if s.results == nil {
		return []domain.StoredResult{}, nil
	}
	return s.results.ListResults(ctx, who.ID, limit)
}

// Close waits for background persistence to finish.
func (s *QuizService) Close() {
	s.background.Wait()
}

func (s *QuizService) persist(who domain.Identity, report domain.ReportData) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx := context.Background()
		if s.settings.PersistTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.settings.PersistTimeout)
			defer cancel()
		}
		if err := s.results.SaveResult(ctx, who, report); err != nil {
			log.Printf("%v for user %s: %v", domain.ErrPersistence, who.ID, err)
			return
		}
		log.Printf("saved quiz results for user %s", who.ID)
	}()
}

func (s *QuizService) active(ctx context.Context, key string) (*Session, error) {
	session, ok, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok || session.State() != StateActive {
		return nil, domain.ErrSessionExpired
	}
	return session, nil
}

func viewOf(session *Session) (SessionView, error) {
	questions, err := session.Questions()
	if err != nil {
		return SessionView{}, err
	}
	answers, err := session.Answers()
	if err != nil {
		return SessionView{}, err
	}
	left, timed, err := session.Remaining()
	if err != nil {
		return SessionView{}, err
	}
	view := SessionView{
		Questions:      questions,
		TotalQuestions: len(questions),
		Timed:          timed,
		Answered:       answers.Answered(),
	}
	if timed {
		secs := math.Max(0, left.Seconds())
		view.RemainingSeconds = &secs
	}
	return view, nil
}
