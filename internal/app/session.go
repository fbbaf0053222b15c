package app

import (
	"sync"
	"time"

	"placement-quiz-service/internal/domain"
)

// State is the lifecycle phase of a Session.
type State string

const (
	StateUnstarted State = "unstarted"
	StateActive    State = "active"
	StateFinished  State = "finished"
)

// Session is one user's quiz attempt. It is safe for concurrent use.
type Session struct {
	mu        sync.RWMutex
	state     State
	questions []domain.Question
	ledger    AnswerLedger
	clock     domain.SessionClock
	now       func() time.Time
}

// NewSession returns an unstarted session.
func NewSession() *Session {
	return NewSessionWithClock(time.Now)
}

// NewSessionWithClock allows deterministic timestamps in tests.
func NewSessionWithClock(now func() time.Time) *Session {
	return &Session{state: StateUnstarted, now: now}
}

// Start moves the session to Active with the given question set. Starting an
// active session replaces the attempt in progress.
func (s *Session) Start(questions []domain.Question, timed bool, perQuestion time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinished {
		return domain.ErrSessionExpired
	}
	s.questions = append([]domain.Question(nil), questions...)
	s.ledger = make(AnswerLedger)
	s.clock = domain.SessionClock{
		StartTime:   s.now(),
		PerQuestion: perQuestion,
		Timed:       timed,
	}
	s.state = StateActive
	return nil
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Len is the size of the question set.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.questions)
}

// Clock returns the session clock.
func (s *Session) Clock() (domain.SessionClock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateActive {
		return domain.SessionClock{}, domain.ErrSessionExpired
	}
	return s.clock, nil
}

// Questions returns the client view of the question set, without answers.
func (s *Session) Questions() ([]domain.PublicQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateActive {
		return nil, domain.ErrSessionExpired
	}
	out := make([]domain.PublicQuestion, len(s.questions))
	for i, q := range s.questions {
		out[i] = domain.PublicQuestion{
			Index:   i,
			ID:      q.ID,
			Subject: q.Subject,
			Topic:   domain.TopicKey(q),
			Text:    q.Text,
			Options: q.Options,
		}
	}
	return out, nil
}

// Answers returns a copy of the ledger.
func (s *Session) Answers() (AnswerLedger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateActive {
		return nil, domain.ErrSessionExpired
	}
	return s.ledger.clone(), nil
}

// SubmitAnswer records the answer for one question, overwriting an earlier
// one, and reveals the correct label and solution.
func (s *Session) SubmitAnswer(sub domain.AnswerSubmission) (domain.AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return domain.AnswerOutcome{}, domain.ErrSessionExpired
	}
	if sub.QuestionIndex == nil {
		return domain.AnswerOutcome{}, domain.ErrInvalidIndex
	}
	idx := *sub.QuestionIndex
	if idx < 0 || idx >= len(s.questions) {
		return domain.AnswerOutcome{}, domain.ErrInvalidIndex
	}

	q := s.questions[idx]
	correct := sub.Selected != "" && sub.Selected == q.Correct
	s.ledger.Record(domain.AnswerRecord{
		QuestionIndex: idx,
		Selected:      sub.Selected,
		IsCorrect:     correct,
		RecordedAt:    s.now(),
	})

	return domain.AnswerOutcome{
		QuestionIndex: idx,
		IsCorrect:     correct,
		Correct:       q.Correct,
		Solution:      q.Solution,
	}, nil
}

// Remaining returns the advisory time left. ok is false for untimed sessions.
// Reaching zero does not finish the session.
func (s *Session) Remaining() (time.Duration, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateActive {
		return 0, false, domain.ErrSessionExpired
	}
	left, ok := s.clock.Remaining(len(s.questions), s.now())
	return left, ok, nil
}

// Finish aggregates the attempt and discards the session state.
func (s *Session) Finish() (domain.ReportData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return domain.ReportData{}, domain.ErrSessionExpired
	}
	report := Aggregate(s.questions, s.ledger, s.clock.StartTime, s.now())

	s.questions = nil
	s.ledger = nil
	s.clock = domain.SessionClock{}
	s.state = StateFinished
	return report, nil
}

// SessionSnapshot is the serializable form of a Session kept between requests.
type SessionSnapshot struct {
	State     State                       `json:"state"`
	Questions []domain.Question           `json:"questions"`
	Answers   map[int]domain.AnswerRecord `json:"user_answers"`
	Clock     domain.SessionClock         `json:"clock"`
}

// Snapshot captures the session for storage.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionSnapshot{
		State:     s.state,
		Questions: append([]domain.Question(nil), s.questions...),
		Answers:   s.ledger.clone(),
		Clock:     s.clock,
	}
}

// RestoreSession rebuilds a session from a snapshot.
func RestoreSession(snap SessionSnapshot, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	ledger := make(AnswerLedger, len(snap.Answers))
	for k, v := range snap.Answers {
		ledger[k] = v
	}
	state := snap.State
	if state == "" {
		state = StateUnstarted
	}
	return &Session{
		state:     state,
		questions: snap.Questions,
		ledger:    ledger,
		clock:     snap.Clock,
		now:       now,
	}
}
