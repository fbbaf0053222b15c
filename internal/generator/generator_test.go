package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"placement-quiz-service/internal/domain"
	"placement-quiz-service/internal/llm"
)

type fakeCompleter struct {
	content string
	err     error
	last    llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.last = req
	return f.content, f.err
}

const twoQuestions = `{"questions":[
 {"chapter":"Ratios","question":"Divide 60 in the ratio 1:2.","options":{"A":"20, 40","B":"30, 30","C":"10, 50","D":"15, 45"},"correct_answer":"A","solution":"60/3 = 20."},
 {"question":"A shop gives 10% off on 200. Price?","options":{"A":"180","B":"190","C":"170","D":"160"},"correct_answer":"a"}
]}`

func TestGenerateFromModel(t *testing.T) {
	client := &fakeCompleter{content: twoQuestions}
	gen := New(client, "llama-3.1-8b-instant", 0.7)

	res := gen.Generate(context.Background(), domain.SubjectQuantitativeAptitude, domain.DifficultyHard, 2)
	if res.Err != nil || res.Source != domain.SourceLLM {
		t.Fatalf("expected clean llm result, got %+v", res)
	}
	if len(res.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(res.Questions))
	}
	second := res.Questions[1]
	if second.Chapter != domain.DefaultChapter || second.Solution != defaultSolution || second.Correct != domain.LabelA {
		t.Fatalf("expected defaults applied, got %+v", second)
	}
	if !client.last.JSON || !strings.Contains(client.last.Prompt, "exactly 2") || !strings.Contains(client.last.Prompt, "hard difficulty") {
		t.Fatalf("unexpected prompt %q", client.last.Prompt)
	}
}

func TestGeneratePadsUnderDelivery(t *testing.T) {
	gen := New(&fakeCompleter{content: twoQuestions}, "m", 0)
	res := gen.Generate(context.Background(), domain.SubjectQuantitativeAptitude, domain.DifficultyEasy, 3)
	if res.Source != domain.SourceMixed || !errors.Is(res.Err, domain.ErrUpstreamGeneration) {
		t.Fatalf("expected mixed result with reason, got %+v", res)
	}
	if len(res.Questions) != 3 {
		t.Fatalf("expected padded to 3, got %d", len(res.Questions))
	}
	if res.Questions[2].Chapter != "Speed, Time & Distance" {
		t.Fatalf("expected fallback question last, got %+v", res.Questions[2])
	}
}

func TestGenerateFallsBackOnFailure(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"call error": {err: errors.New("timeout")},
		"malformed":  {content: `{"questions": [ {"question": `},
		"no array":   {content: `{"items": []}`},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			res := New(client, "m", 0).Generate(context.Background(), domain.SubjectVerbalAbility, domain.DifficultyMedium, 2)
			if res.Source != domain.SourceFallback || !errors.Is(res.Err, domain.ErrUpstreamGeneration) {
				t.Fatalf("expected fallback, got %+v", res)
			}
			if len(res.Questions) != 2 {
				t.Fatalf("expected 2 fallback questions, got %d", len(res.Questions))
			}
		})
	}
}

func TestGenerateFallbackPoolTooSmall(t *testing.T) {
	res := New(&fakeCompleter{err: errors.New("down")}, "m", 0).Generate(context.Background(), domain.SubjectLogicalReasoning, domain.DifficultyMedium, 4)
	if len(res.Questions) != 1 {
		t.Fatalf("expected only the single default question, got %d", len(res.Questions))
	}
	if res := New(&fakeCompleter{err: errors.New("down")}, "m", 0).Generate(context.Background(), "Astronomy", domain.DifficultyMedium, 2); len(res.Questions) != 0 {
		t.Fatalf("expected no fallback for unknown subject")
	}
}

func TestGenerateDropsMalformedAndOffTopic(t *testing.T) {
	content := `{"questions":[
	 {"question":"Missing options","options":{"A":"1","B":"2"},"correct_answer":"A"},
	 {"question":"Bad label","options":{"A":"1","B":"2","C":"3","E":"4"},"correct_answer":"A"},
	 {"question":"Bad answer","options":{"A":"1","B":"2","C":"3","D":"4"},"correct_answer":"F"},
	 {"question":"Calculate the percentage of 5 in 20","options":{"A":"1","B":"2","C":"3","D":"4"},"correct_answer":"A"},
	 {"chapter":"Antonyms","question":"Antonym of 'scarce'?","options":{"A":"Rare","B":"Plenty","C":"Few","D":"Little"},"correct_answer":"B","solution":"Scarce means insufficient."}
	]}`
	res := New(&fakeCompleter{content: content}, "m", 0).Generate(context.Background(), domain.SubjectVerbalAbility, domain.DifficultyMedium, 1)
	if res.Source != domain.SourceLLM || len(res.Questions) != 1 {
		t.Fatalf("expected the single valid question, got %+v", res)
	}
	if res.Questions[0].Chapter != "Antonyms" {
		t.Fatalf("unexpected question %+v", res.Questions[0])
	}
}

func TestStripFences(t *testing.T) {
	got := stripFences("```json\n{\"questions\":[]}\n```")
	if got != `{"questions":[]}` {
		t.Fatalf("unexpected %q", got)
	}
}
