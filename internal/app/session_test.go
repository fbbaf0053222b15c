package app

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"placement-quiz-service/internal/domain"
)

func TestDistribute(t *testing.T) {
	for n := 1; n <= MaxQuestions; n++ {
		for k := 1; k <= n && k <= 5; k++ {
			counts := Distribute(n, k)
			sum := 0
			for i, c := range counts {
				sum += c
				want := n / k
				if i < n%k {
					want++
				}
				if c != want {
					t.Fatalf("n=%d k=%d: subject %d got %d want %d", n, k, i, c, want)
				}
			}
			if sum != n {
				t.Fatalf("n=%d k=%d: sum %d", n, k, sum)
			}
		}
	}
}

func TestDistributeClampsAndZero(t *testing.T) {
	counts := Distribute(50, 3)
	if counts[0]+counts[1]+counts[2] != MaxQuestions {
		t.Fatalf("expected clamp to %d, got %v", MaxQuestions, counts)
	}
	for _, c := range Distribute(0, 2) {
		if c != 0 {
			t.Fatalf("expected zero counts, got %v", Distribute(0, 2))
		}
	}
	for _, c := range Distribute(-3, 2) {
		if c != 0 {
			t.Fatalf("expected zero counts for negative n")
		}
	}
	if Distribute(5, 0) != nil {
		t.Fatalf("expected nil for no subjects")
	}
}

type stubSource struct {
	perSubject map[string][]domain.Question
}

func (s *stubSource) Generate(_ context.Context, subject string, _ domain.Difficulty, count int) domain.GenerationResult {
	qs := s.perSubject[subject]
	if len(qs) > count {
		qs = qs[:count]
	}
	return domain.GenerationResult{Questions: qs, Source: domain.SourceLLM}
}

func makeQuestions(prefix string, n int) []domain.Question {
	out := make([]domain.Question, n)
	for i := range out {
		out[i] = domain.Question{
			ID:      prefix + string(rune('a'+i)),
			Text:    prefix,
			Options: domain.Options{A: "1", B: "2", C: "3", D: "4"},
			Correct: domain.LabelA,
		}
	}
	return out
}

func TestAssembleShufflesPermutation(t *testing.T) {
	src := &stubSource{perSubject: map[string][]domain.Question{
		domain.SubjectLogicalReasoning:     makeQuestions("lr", 10),
		domain.SubjectQuantitativeAptitude: makeQuestions("qa", 10),
	}}
	subjects := []string{domain.SubjectLogicalReasoning, domain.SubjectQuantitativeAptitude}
	qs := AssembleQuestionSet(context.Background(), src, subjects, domain.DifficultyEasy, 7, rand.New(rand.NewSource(1)))
	if len(qs) != 7 {
		t.Fatalf("expected 7 questions, got %d", len(qs))
	}

	got := make([]string, 0, len(qs))
	for _, q := range qs {
		got = append(got, q.ID)
		if q.Chapter != domain.DefaultChapter {
			t.Fatalf("expected default chapter, got %q", q.Chapter)
		}
	}
	want := []string{"lra", "lrb", "lrc", "lrd", "qaa", "qab", "qac"}
	sort.Strings(got)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected same questions after shuffle, got %v", got)
		}
	}
}

func TestAssembleShortFallbackPool(t *testing.T) {
	src := &stubSource{perSubject: map[string][]domain.Question{
		domain.SubjectVerbalAbility: makeQuestions("va", 1),
	}}
	qs := AssembleQuestionSet(context.Background(), src, []string{domain.SubjectVerbalAbility}, domain.DifficultyHard, 3, rand.New(rand.NewSource(1)))
	if len(qs) != 1 {
		t.Fatalf("expected silently shortened set of 1, got %d", len(qs))
	}
	if qs[0].Subject != domain.SubjectVerbalAbility {
		t.Fatalf("expected subject tag, got %q", qs[0].Subject)
	}
}

func fixedClock(start time.Time) (func() time.Time, func(time.Duration)) {
	now := start
	return func() time.Time { return now }, func(d time.Duration) { now = start.Add(d) }
}

func intPtr(v int) *int { return &v }

func TestResubmissionOverwrites(t *testing.T) {
	clock, _ := fixedClock(time.Unix(1000, 0))
	s := NewSessionWithClock(clock)
	if err := s.Start(makeQuestions("q", 3), false, time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}

	if out, _ := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(0), Selected: domain.LabelA}); !out.IsCorrect {
		t.Fatalf("expected correct")
	}
	out, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(0), Selected: domain.LabelB})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if out.IsCorrect || out.Correct != domain.LabelA {
		t.Fatalf("unexpected outcome %+v", out)
	}

	report, err := s.Finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if report.CorrectCount != 0 || report.IncorrectCount != 1 || report.UnansweredCount != 2 {
		t.Fatalf("expected latest submission only, got %+v", report)
	}
}

func TestSubmitInvalidIndex(t *testing.T) {
	s := NewSession()
	_ = s.Start(makeQuestions("q", 3), false, time.Minute)

	for _, idx := range []*int{intPtr(-1), intPtr(3), nil} {
		if _, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: idx, Selected: domain.LabelA}); !errors.Is(err, domain.ErrInvalidIndex) {
			t.Fatalf("expected invalid index, got %v", err)
		}
	}
}

func TestSubmitWithoutSelectionIsIncorrect(t *testing.T) {
	s := NewSession()
	_ = s.Start(makeQuestions("q", 1), false, time.Minute)
	out, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(0)})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.IsCorrect {
		t.Fatalf("expected absent selection to be incorrect")
	}
}

func TestAggregateEmpty(t *testing.T) {
	now := time.Unix(100, 0)
	report := Aggregate(nil, AnswerLedger{}, now, now)
	if report.Accuracy != 0 || report.TotalQuestions != 0 || report.UnansweredCount != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
}

func TestAggregateTopicBreakdown(t *testing.T) {
	questions := []domain.Question{
		{Subject: domain.SubjectLogicalReasoning, Chapter: "Syllogisms", Correct: domain.LabelA},
		{Subject: domain.SubjectLogicalReasoning, Chapter: "Syllogisms", Correct: domain.LabelB},
		{Subject: domain.SubjectQuantitativeAptitude, Chapter: "Ratios", Correct: domain.LabelC},
	}
	ledger := AnswerLedger{}
	ledger.Record(domain.AnswerRecord{QuestionIndex: 0, Selected: domain.LabelA, IsCorrect: true})
	ledger.Record(domain.AnswerRecord{QuestionIndex: 1, Selected: domain.LabelC, IsCorrect: false})

	start := time.Unix(0, 0)
	report := Aggregate(questions, ledger, start, start.Add(61600*time.Millisecond))

	want := map[string]domain.TopicBucket{
		"LR -> Syllogisms": {Correct: 1, Incorrect: 1, Total: 2},
		"QA -> Ratios":     {Correct: 0, Incorrect: 0, Total: 1},
	}
	if len(report.TopicBreakdown) != len(want) {
		t.Fatalf("unexpected buckets %+v", report.TopicBreakdown)
	}
	for k, v := range want {
		if report.TopicBreakdown[k] != v {
			t.Fatalf("bucket %s: got %+v want %+v", k, report.TopicBreakdown[k], v)
		}
	}
	if report.UnansweredCount != 1 || report.Score != 1 {
		t.Fatalf("unexpected counts %+v", report)
	}
	if report.Accuracy != 33.33 {
		t.Fatalf("expected accuracy 33.33, got %v", report.Accuracy)
	}
	if report.TotalTimeTaken != 62 {
		t.Fatalf("expected 62s rounded, got %d", report.TotalTimeTaken)
	}
}

func TestTimedRemaining(t *testing.T) {
	clock, advance := fixedClock(time.Unix(5000, 0))
	s := NewSessionWithClock(clock)
	_ = s.Start(makeQuestions("q", 5), true, 60*time.Second)

	advance(250 * time.Second)
	left, timed, err := s.Remaining()
	if err != nil || !timed {
		t.Fatalf("expected timed session, err=%v", err)
	}
	if left != 50*time.Second {
		t.Fatalf("expected 50s left, got %v", left)
	}

	advance(301 * time.Second)
	left, _, _ = s.Remaining()
	if left != 0 {
		t.Fatalf("expected 0 left, got %v", left)
	}
	if s.State() != StateActive {
		t.Fatalf("expiry must not finish the session")
	}
}

func TestUntimedRemaining(t *testing.T) {
	s := NewSession()
	_ = s.Start(makeQuestions("q", 2), false, time.Minute)
	if _, timed, _ := s.Remaining(); timed {
		t.Fatalf("expected untimed")
	}
}

func TestFinishClearsSession(t *testing.T) {
	s := NewSession()
	_ = s.Start(makeQuestions("q", 2), false, time.Minute)
	if _, err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if _, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(0), Selected: domain.LabelA}); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
	if _, err := s.Finish(); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired on second finish, got %v", err)
	}
	if err := s.Start(makeQuestions("q", 1), false, time.Minute); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("finished session must not restart, got %v", err)
	}
}

func TestUnstartedSessionRejectsAnswers(t *testing.T) {
	s := NewSession()
	if _, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(0)}); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected session expired, got %v", err)
	}
}

func TestSnapshotRoundTripKeepsLedger(t *testing.T) {
	clock, _ := fixedClock(time.Unix(42, 0))
	s := NewSessionWithClock(clock)
	_ = s.Start(makeQuestions("q", 2), true, time.Minute)
	_, _ = s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(1), Selected: domain.LabelA})

	restored := RestoreSession(s.Snapshot(), clock)
	answers, err := restored.Answers()
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if rec, ok := answers.Get(1); !ok || !rec.IsCorrect {
		t.Fatalf("expected restored answer, got %+v", answers)
	}
	if _, ok := answers.Get(0); ok {
		t.Fatalf("unanswered index must have no entry")
	}
}

func TestAssembleNegativeCountYieldsEmptySet(t *testing.T) {
	src := &stubSource{perSubject: map[string][]domain.Question{
		domain.SubjectVerbalAbility: makeQuestions("va", 2),
	}}
	for _, n := range []int{-1, -50, 0} {
		qs := AssembleQuestionSet(context.Background(), src, []string{domain.SubjectVerbalAbility}, domain.DifficultyEasy, n, rand.New(rand.NewSource(1)))
		if len(qs) != 0 {
			t.Fatalf("expected no questions for n=%d, got %d", n, len(qs))
		}
	}
}

func TestAssembleClampsToMaxQuestions(t *testing.T) {
	src := &stubSource{perSubject: map[string][]domain.Question{
		domain.SubjectLogicalReasoning: makeQuestions("lr", 26),
		domain.SubjectVerbalAbility:    makeQuestions("va", 26),
	}}
	subjects := []string{domain.SubjectLogicalReasoning, domain.SubjectVerbalAbility}
	qs := AssembleQuestionSet(context.Background(), src, subjects, domain.DifficultyEasy, 100, rand.New(rand.NewSource(1)))
	if len(qs) != MaxQuestions {
		t.Fatalf("expected %d questions, got %d", MaxQuestions, len(qs))
	}
}

// Run with -race: readers and writers share one *Session the way the
// websocket ticker and HTTP handlers do.
func TestSessionConcurrentSubmitAndRead(t *testing.T) {
	s := NewSession()
	if err := s.Start(makeQuestions("q", 5), true, time.Minute); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, _, _ = s.Remaining()
				_, _ = s.Answers()
				_, _ = s.Questions()
				_ = s.Snapshot()
			}
		}()
	}

	for i := 0; i < 500; i++ {
		label := domain.LabelA
		if i%2 == 1 {
			label = domain.LabelB
		}
		if _, err := s.SubmitAnswer(domain.AnswerSubmission{QuestionIndex: intPtr(i % 5), Selected: label}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	close(stop)
	wg.Wait()

	answers, err := s.Answers()
	if err != nil {
		t.Fatalf("answers: %v", err)
	}
	if len(answers) != 5 {
		t.Fatalf("expected 5 answered questions, got %d", len(answers))
	}
	if _, err := s.Finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
}
