package generator

import (
	"context"
	"fmt"
	"strings"

	"placement-quiz-service/internal/domain"
	"placement-quiz-service/internal/llm"
)

// Completer is the part of llm.Client the generator needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Generator asks a language model for MCQs and pads shortfalls from the built-in pool.
type Generator struct {
	client      Completer
	model       string
	temperature float64
}

func New(client Completer, model string, temperature float64) *Generator {
	return &Generator{client: client, model: model, temperature: temperature}
}

var chapterHints = map[string]string{
	domain.SubjectLogicalReasoning:     "Chapters may include: Syllogisms, Blood Relations, Coding-Decoding, Seating Arrangement, Direction Sense.",
	domain.SubjectQuantitativeAptitude: "Chapters may include: Time & Work, Percentages, Profit & Loss, Speed Time & Distance, Ratios.",
	domain.SubjectVerbalAbility:        "Chapters may include: Synonyms & Antonyms, Reading Comprehension, Sentence Correction, Para Jumbles, Idioms & Phrases.",
}

// Generate implements app.QuestionSource. It always returns at most count
// questions; when the model fails or under-delivers the result is padded from
// the default pool and Err explains why.
func (g *Generator) Generate(ctx context.Context, subject string, difficulty domain.Difficulty, count int) domain.GenerationResult {
	if count <= 0 {
		return domain.GenerationResult{Source: domain.SourceLLM}
	}

	content, err := g.client.Complete(ctx, llm.Request{
		Model:       g.model,
		Prompt:      buildPrompt(subject, difficulty, count),
		Temperature: g.temperature,
		JSON:        true,
	})
	if err != nil {
		return fallback(subject, count, fmt.Errorf("%w: %v", domain.ErrUpstreamGeneration, err))
	}

	parsed, dropped, err := parseQuestions(content)
	if err != nil {
		return fallback(subject, count, fmt.Errorf("%w: %v", domain.ErrUpstreamGeneration, err))
	}

	questions := make([]domain.Question, 0, count)
	for _, q := range parsed {
		if !onTopic(q, subject) {
			dropped++
			continue
		}
		questions = append(questions, q)
		if len(questions) == count {
			break
		}
	}

	if len(questions) == count {
		return domain.GenerationResult{Questions: questions, Source: domain.SourceLLM}
	}
	missing := count - len(questions)
	questions = append(questions, DefaultQuestions(subject, missing)...)
	return domain.GenerationResult{
		Questions: questions,
		Source:    domain.SourceMixed,
		Err:       fmt.Errorf("%w: model returned %d usable of %d requested (%d dropped)", domain.ErrUpstreamGeneration, count-missing, count, dropped),
	}
}

func fallback(subject string, count int, reason error) domain.GenerationResult {
	return domain.GenerationResult{
		Questions: DefaultQuestions(subject, count),
		Source:    domain.SourceFallback,
		Err:       reason,
	}
}

func buildPrompt(subject string, difficulty domain.Difficulty, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate exactly %d multiple choice questions (MCQ) about %s with %s difficulty,\n", count, subject, strings.ToLower(string(difficulty)))
	b.WriteString("focused on engineering placement scenarios in Indian B.Tech colleges like those asked by companies like Infosys, Wipro, TCS.\n")
	if hint, ok := chapterHints[subject]; ok {
		b.WriteString(hint)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `
For each question, provide:
1. The question text (strictly about %[1]s).
2. A specific chapter or topic name for the question (e.g., "Time & Work", "Syllogisms").
3. Four options labeled A, B, C, D.
4. The correct answer letter.
5. A detailed step-by-step solution.

Format EACH question as a JSON object like this:
{
    "chapter": "Chapter Name Here",
    "question": "Question text here",
    "options": { "A": "option 1", "B": "option 2", "C": "option 3", "D": "option 4" },
    "correct_answer": "Correct letter here",
    "solution": "Detailed step-by-step solution here"
}

Return ONLY a JSON object with the key "questions" holding an array of these questions. Do not include any other text or explanations.
`, subject)
	return b.String()
}
