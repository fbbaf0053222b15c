package app

import (
	"context"
	"log"
	"math/rand"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"placement-quiz-service/internal/domain"
)

// MaxQuestions caps the size of a question set.
const MaxQuestions = 30

// QuestionSource produces questions for one subject. It never fails outright:
// upstream problems are reported in GenerationResult.Err alongside fallback questions.
type QuestionSource interface {
	Generate(ctx context.Context, subject string, difficulty domain.Difficulty, count int) domain.GenerationResult
}

// Distribute splits n questions across k subjects. n is clamped to MaxQuestions;
// the first n%k subjects receive one extra question.
func Distribute(n, k int) []int {
	if k <= 0 {
		return nil
	}
	counts := make([]int, k)
	if n <= 0 {
		return counts
	}
	if n > MaxQuestions {
		n = MaxQuestions
	}
	base, remainder := n/k, n%k
	for i := range counts {
		counts[i] = base
		if i < remainder {
			counts[i]++
		}
	}
	return counts
}

// AssembleQuestionSet requests each subject's share from src, tags the
// results and shuffles the combined list once. A subject whose fallback pool
// is too small yields fewer questions; no error is raised for that.
func AssembleQuestionSet(ctx context.Context, src QuestionSource, subjects []string, difficulty domain.Difficulty, n int, rnd *rand.Rand) []domain.Question {
	counts := Distribute(n, len(subjects))
	perSubject := make([][]domain.Question, len(subjects))

	total := 0
	for _, c := range counts {
		total += c
	}

	// Generate does not fail; upstream errors come back as fallback questions
	// in GenerationResult. The group only waits, it never cancels siblings.
	var g errgroup.Group
	for i, subject := range subjects {
		i, subject, count := i, subject, counts[i]
		if count <= 0 {
			continue
		}
		g.Go(func() error {
			res := src.Generate(ctx, subject, difficulty, count)
			if res.Err != nil {
				log.Printf("questions for %q served from %s: %v", subject, res.Source, res.Err)
			}
			qs := res.Questions
			if len(qs) > count {
				qs = qs[:count]
			}
			perSubject[i] = tagQuestions(qs, subject)
			return nil
		})
	}
	g.Wait()

	questions := make([]domain.Question, 0, total)
	for _, qs := range perSubject {
		questions = append(questions, qs...)
	}
	rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	return questions
}

func tagQuestions(qs []domain.Question, subject string) []domain.Question {
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		q.Subject = subject
		if q.Chapter == "" {
			q.Chapter = domain.DefaultChapter
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		out[i] = q
	}
	return out
}
