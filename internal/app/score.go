package app

import (
	"math"
	"time"

	"placement-quiz-service/internal/domain"
)

// Aggregate derives the score report from the question set and ledger.
// It only reads its inputs, so the same arguments always give the same result.
func Aggregate(questions []domain.Question, ledger AnswerLedger, start, now time.Time) domain.ReportData {
	report := domain.ReportData{
		TotalQuestions: len(questions),
		TopicBreakdown: make(map[string]domain.TopicBucket),
	}

	for i, q := range questions {
		key := domain.TopicKey(q)
		bucket := report.TopicBreakdown[key]
		bucket.Total++

		if rec, ok := ledger.Get(i); ok {
			if rec.IsCorrect {
				report.CorrectCount++
				bucket.Correct++
			} else {
				report.IncorrectCount++
				bucket.Incorrect++
			}
		}
		report.TopicBreakdown[key] = bucket
	}

	report.Score = report.CorrectCount
	report.UnansweredCount = report.TotalQuestions - report.CorrectCount - report.IncorrectCount
	if report.TotalQuestions > 0 {
		accuracy := 100 * float64(report.CorrectCount) / float64(report.TotalQuestions)
		report.Accuracy = math.Round(accuracy*100) / 100
	}
	report.TotalTimeTaken = int(math.Round(now.Sub(start).Seconds()))
	return report
}
