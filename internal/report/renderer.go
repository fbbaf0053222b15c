package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"

	"placement-quiz-service/internal/domain"
	"placement-quiz-service/internal/generator"
	"placement-quiz-service/internal/llm"
)

// Renderer asks a language model for a Markdown performance report.
type Renderer struct {
	client      generator.Completer
	model       string
	temperature float64
}

func NewRenderer(client generator.Completer, model string, temperature float64) *Renderer {
	return &Renderer{client: client, model: model, temperature: temperature}
}

// Render implements app.ReportRenderer. An empty narrative is an error, never a blank report.
func (r *Renderer) Render(ctx context.Context, data domain.ReportData) (string, error) {
	prompt, err := buildPrompt(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReportFailed, err)
	}
	content, err := r.client.Complete(ctx, llm.Request{
		Model:       r.model,
		Prompt:      prompt,
		Temperature: r.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrReportFailed, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty analysis", domain.ErrReportFailed)
	}
	return content, nil
}

// WeakTopics lists topics with at least one incorrect answer, sorted by key.
func WeakTopics(data domain.ReportData) []string {
	return topicsWhere(data, func(b domain.TopicBucket) bool { return b.Incorrect > 0 })
}

// StrongTopics lists topics answered without mistakes and at least one correct answer.
func StrongTopics(data domain.ReportData) []string {
	return topicsWhere(data, func(b domain.TopicBucket) bool { return b.Incorrect == 0 && b.Correct > 0 })
}

func topicsWhere(data domain.ReportData, keep func(domain.TopicBucket) bool) []string {
	out := []string{}
	for topic, bucket := range data.TopicBreakdown {
		if keep(bucket) {
			out = append(out, topic)
		}
	}
	sort.Strings(out)
	return out
}

func buildPrompt(data domain.ReportData) (string, error) {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	weak := WeakTopics(data)
	strong := StrongTopics(data)

	var b strings.Builder
	b.WriteString("You are an expert academic advisor and career coach writing a performance report for a placement aptitude test.\n\n")
	b.WriteString("Student's test data:\n")
	b.Write(raw)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Strong topics: %s\n", listOrNone(strong))
	fmt.Fprintf(&b, "Weak topics (incorrect answers > 0): %s\n\n", listOrNone(weak))
	b.WriteString(`Write the report in Markdown with exactly this structure:

## Overall Summary
A brief, encouraging paragraph about the student's performance and potential.

## Detailed Analysis
### Your Strengths
* Bullet list of strong topics.

### Areas for Improvement
* Bullet list of weak topics.

## Personalized Recommendations
A short paragraph with actionable advice based on the analysis.

## Recommended Resources
For each weak topic, a "### Topic: <name>" sub-heading with one suggested video search and one suggested practice search.
Do not invent URLs.

Generate only the final report text in Markdown. Do not add any extra text or commentary.
`)
	return b.String(), nil
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

// ToHTML converts the Markdown narrative into HTML for display.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
