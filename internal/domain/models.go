package domain

import (
	"strings"
	"time"
)

// Label identifies one of the four answer options of a question.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
	LabelD Label = "D"
)

// Labels lists the option labels in display order.
var Labels = [4]Label{LabelA, LabelB, LabelC, LabelD}

// ParseLabel normalizes raw input ("b", " B) ") into a Label.
func ParseLabel(raw string) (Label, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ").")
	switch Label(s) {
	case LabelA, LabelB, LabelC, LabelD:
		return Label(s), true
	}
	return "", false
}

// Options holds the text of the four options. The fixed shape keeps the label set closed.
type Options struct {
	A string `json:"A"`
	B string `json:"B"`
	C string `json:"C"`
	D string `json:"D"`
}

// Get returns the option text for a label.
func (o Options) Get(l Label) (string, bool) {
	switch l {
	case LabelA:
		return o.A, true
	case LabelB:
		return o.B, true
	case LabelC:
		return o.C, true
	case LabelD:
		return o.D, true
	}
	return "", false
}

// Complete reports whether every option has text.
func (o Options) Complete() bool {
	return o.A != "" && o.B != "" && o.C != "" && o.D != ""
}

// Question models an MCQ question with exactly one correct label.
type Question struct {
	ID       string  `json:"id"`
	Subject  string  `json:"subject"`
	Chapter  string  `json:"chapter"`
	Text     string  `json:"question"`
	Options  Options `json:"options"`
	Correct  Label   `json:"correct_answer"`
	Solution string  `json:"solution"`
}

// PublicQuestion is what clients see before answering.
type PublicQuestion struct {
	Index   int     `json:"index"`
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Topic   string  `json:"topic"`
	Text    string  `json:"question"`
	Options Options `json:"options"`
}

// AnswerSubmission is a client's answer for one question. A nil index means the client omitted it.
type AnswerSubmission struct {
	QuestionIndex *int
	Selected      Label
}

// AnswerRecord is the recorded outcome for a question index.
type AnswerRecord struct {
	QuestionIndex int       `json:"question_index"`
	Selected      Label     `json:"user_answer"`
	IsCorrect     bool      `json:"is_correct"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// AnswerOutcome is returned to the client after each submission.
type AnswerOutcome struct {
	QuestionIndex int    `json:"question_index"`
	IsCorrect     bool   `json:"is_correct"`
	Correct       Label  `json:"correct_answer"`
	Solution      string `json:"solution"`
}

// SessionClock drives remaining-time computation for timed sessions.
type SessionClock struct {
	StartTime   time.Time     `json:"start_time"`
	PerQuestion time.Duration `json:"per_question"`
	Timed       bool          `json:"timed_test"`
}

// Remaining returns the time left for n questions at now; ok is false for untimed sessions.
func (c SessionClock) Remaining(n int, now time.Time) (time.Duration, bool) {
	if !c.Timed {
		return 0, false
	}
	allowed := time.Duration(n) * c.PerQuestion
	left := allowed - now.Sub(c.StartTime)
	if left < 0 {
		left = 0
	}
	return left, true
}

// TopicBucket aggregates results for one "{abbrev} -> {chapter}" key.
type TopicBucket struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Total     int `json:"total"`
}

// ReportData is the aggregated result of a finished quiz attempt.
type ReportData struct {
	StudentName     string                 `json:"student_name"`
	Score           int                    `json:"score"`
	TotalQuestions  int                    `json:"total_questions"`
	Accuracy        float64                `json:"accuracy"`
	CorrectCount    int                    `json:"correct_count"`
	IncorrectCount  int                    `json:"incorrect_count"`
	UnansweredCount int                    `json:"unanswered_count"`
	TotalTimeTaken  int                    `json:"total_time_taken"`
	TimedOut        bool                   `json:"timed_out"`
	TopicBreakdown  map[string]TopicBucket `json:"topic_breakdown"`
}

// Report is the narrative analysis produced for a ReportData.
type Report struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

// StoredResult is a persisted ReportData with its server timestamp.
type StoredResult struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Data      ReportData `json:"data"`
	CreatedAt time.Time  `json:"created_at"`
}

// Identity is the caller behind a request: either a guest or a registered user.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Guest bool   `json:"guest"`
}

// DisplayName is the name shown on reports.
func (i Identity) DisplayName() string {
	if i.Guest || i.Email == "" {
		return "Guest"
	}
	return i.Email
}

// User is a registered account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}
