package generator

import "placement-quiz-service/internal/domain"

// defaultPool holds the built-in questions served when the model under-delivers.
var defaultPool = map[string][]domain.Question{
	domain.SubjectLogicalReasoning: {
		{
			Chapter:  "Syllogisms",
			Text:     "If all Bloops are Razzies and all Razzies are Lazzies, then all Bloops are definitely Lazzies?",
			Options:  domain.Options{A: "True", B: "False", C: "Uncertain", D: "None of the above"},
			Correct:  domain.LabelA,
			Solution: "This is a case of transitive relation. If A implies B and B implies C, then A implies C. So, the statement is True.",
		},
	},
	domain.SubjectQuantitativeAptitude: {
		{
			Chapter:  "Speed, Time & Distance",
			Text:     "If a train travels 300 km in 5 hours, what is its average speed?",
			Options:  domain.Options{A: "50 km/h", B: "60 km/h", C: "70 km/h", D: "80 km/h"},
			Correct:  domain.LabelB,
			Solution: "Average Speed = Total Distance / Total Time. Speed = 300 km / 5 hours = 60 km/h.",
		},
	},
	domain.SubjectVerbalAbility: {
		{
			Chapter:  "Synonyms",
			Text:     "Choose the correct synonym for 'Benevolent'",
			Options:  domain.Options{A: "Cruel", B: "Kind", C: "Selfish", D: "Greedy"},
			Correct:  domain.LabelB,
			Solution: "'Benevolent' means well-meaning and kindly. 'Kind' is the closest synonym.",
		},
		{
			Chapter:  "Sentence Correction",
			Text:     "Identify the grammatically correct sentence:",
			Options:  domain.Options{A: "She don't like apples", B: "She doesn't likes apples", C: "She doesn't like apples", D: "She not like apples"},
			Correct:  domain.LabelC,
			Solution: "'She' is third person singular, so it takes 'does' followed by the base verb 'like'.",
		},
	},
}

// DefaultQuestions returns up to n built-in questions for subject. Unknown subjects have none.
func DefaultQuestions(subject string, n int) []domain.Question {
	pool := defaultPool[subject]
	if n > len(pool) {
		n = len(pool)
	}
	if n <= 0 {
		return nil
	}
	out := make([]domain.Question, n)
	copy(out, pool[:n])
	return out
}
