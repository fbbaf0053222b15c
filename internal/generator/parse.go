package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"placement-quiz-service/internal/domain"
)

const defaultSolution = "Solution not available."

// rawQuestion mirrors the loosely-typed JSON the model returns.
type rawQuestion struct {
	Chapter  string            `json:"chapter"`
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
	Correct  string            `json:"correct_answer"`
	Solution string            `json:"solution"`
}

type rawPayload struct {
	Questions []json.RawMessage `json:"questions"`
}

// parseQuestions decodes the model output. Items that do not fit the fixed
// question shape are dropped individually; the count of dropped items is returned.
func parseQuestions(content string) ([]domain.Question, int, error) {
	content = stripFences(content)
	var payload rawPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, 0, fmt.Errorf("decode questions: %w", err)
	}
	if payload.Questions == nil {
		return nil, 0, errors.New("response has no questions array")
	}

	out := make([]domain.Question, 0, len(payload.Questions))
	dropped := 0
	for _, item := range payload.Questions {
		var rq rawQuestion
		if err := json.Unmarshal(item, &rq); err != nil {
			dropped++
			continue
		}
		q, ok := toQuestion(rq)
		if !ok {
			dropped++
			continue
		}
		out = append(out, q)
	}
	return out, dropped, nil
}

func toQuestion(rq rawQuestion) (domain.Question, bool) {
	text := strings.TrimSpace(rq.Question)
	if text == "" || len(rq.Options) != 4 {
		return domain.Question{}, false
	}

	var opts domain.Options
	for key, value := range rq.Options {
		label, ok := domain.ParseLabel(key)
		if !ok {
			return domain.Question{}, false
		}
		value = strings.TrimSpace(value)
		switch label {
		case domain.LabelA:
			opts.A = value
		case domain.LabelB:
			opts.B = value
		case domain.LabelC:
			opts.C = value
		case domain.LabelD:
			opts.D = value
		}
	}
	if !opts.Complete() {
		return domain.Question{}, false
	}

	correct, ok := domain.ParseLabel(rq.Correct)
	if !ok {
		return domain.Question{}, false
	}

	solution := strings.TrimSpace(rq.Solution)
	if solution == "" {
		solution = defaultSolution
	}
	chapter := strings.TrimSpace(rq.Chapter)
	if chapter == "" {
		chapter = domain.DefaultChapter
	}
	return domain.Question{
		Chapter:  chapter,
		Text:     text,
		Options:  opts,
		Correct:  correct,
		Solution: solution,
	}, true
}

// stripFences removes a ```json ... ``` wrapper some models add despite JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// offTopicWords flags questions that drifted into another subject.
var offTopicWords = map[string][]string{
	domain.SubjectVerbalAbility:        {"calculate", "percentage", "profit", "loss", "ratio", "sum", "average", "km", "hour"},
	domain.SubjectQuantitativeAptitude: {"synonym", "antonym", "grammar", "sentence", "passage", "reading"},
	domain.SubjectLogicalReasoning:     {"calculate", "percentage", "synonym", "antonym", "grammar"},
}

func onTopic(q domain.Question, subject string) bool {
	text := strings.ToLower(q.Text)
	for _, word := range offTopicWords[subject] {
		if strings.Contains(text, word) {
			return false
		}
	}
	return true
}
