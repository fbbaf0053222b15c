package domain

import "strings"

// Subjects offered on the setup form.
const (
	SubjectLogicalReasoning     = "Logical Reasoning"
	SubjectQuantitativeAptitude = "Quantitative Aptitude"
	SubjectVerbalAbility        = "Verbal Ability"
)

// Subjects lists the subjects in display order.
var Subjects = []string{SubjectLogicalReasoning, SubjectQuantitativeAptitude, SubjectVerbalAbility}

var subjectAbbrev = map[string]string{
	SubjectLogicalReasoning:     "LR",
	SubjectQuantitativeAptitude: "QA",
	SubjectVerbalAbility:        "VA",
}

// DefaultChapter is used when the source does not name one.
const DefaultChapter = "General"

// SubjectAbbrev returns the short code used in topic keys, or "Unknown".
func SubjectAbbrev(subject string) string {
	if a, ok := subjectAbbrev[subject]; ok {
		return a
	}
	return "Unknown"
}

// TopicKey builds the "{abbrev} -> {chapter}" bucket key for a question.
func TopicKey(q Question) string {
	chapter := q.Chapter
	if chapter == "" {
		chapter = DefaultChapter
	}
	return SubjectAbbrev(q.Subject) + " -> " + chapter
}

// Difficulty is the requested question difficulty.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty accepts any casing and falls back to Medium.
func ParseDifficulty(raw string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy":
		return DifficultyEasy
	case "hard":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// GenerationSource tells where the questions of a GenerationResult came from.
type GenerationSource string

const (
	SourceLLM      GenerationSource = "llm"
	SourceMixed    GenerationSource = "mixed"
	SourceFallback GenerationSource = "fallback"
)

// GenerationResult is the outcome of one QuestionSource call. Err carries the
// upstream reason when Source is not SourceLLM.
type GenerationResult struct {
	Questions []Question
	Source    GenerationSource
	Err       error
}
