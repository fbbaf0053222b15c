package app

import (
	"sort"

	"placement-quiz-service/internal/domain"
)

// AnswerLedger maps a question index to its recorded answer. Unanswered indices have no entry.
type AnswerLedger map[int]domain.AnswerRecord

// Record stores rec at its index, replacing any earlier submission.
func (l AnswerLedger) Record(rec domain.AnswerRecord) {
	l[rec.QuestionIndex] = rec
}

// Get returns the record for index, if answered.
func (l AnswerLedger) Get(index int) (domain.AnswerRecord, bool) {
	rec, ok := l[index]
	return rec, ok
}

// Answered returns the answered indices in ascending order.
func (l AnswerLedger) Answered() []int {
	out := make([]int, 0, len(l))
	for idx := range l {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func (l AnswerLedger) clone() AnswerLedger {
	out := make(AnswerLedger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}
