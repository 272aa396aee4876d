// Package suggest wraps a generative text model behind a small
// text-in/suggestions-out interface. It has no bearing on the completion
// workflow; it only helps members phrase task descriptions and feedback
// so they are not misread.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Suggestion is one phrase the model flagged, with a replacement.
type Suggestion struct {
	PhraseToAvoid        string `json:"phrase_to_avoid"`
	SuggestedAlternative string `json:"suggested_alternative"`
	Reason               string `json:"reason"`
}

// Advisor analyzes free text for phrases likely to be misunderstood.
type Advisor interface {
	Suggest(ctx context.Context, text string) ([]Suggestion, error)
}

const promptTemplate = `You are an assistant that helps users avoid misunderstandings in their written communication.

Analyze the following text and suggest phrases to avoid that could lead to misunderstandings, along with suggested alternatives and a reason for each suggestion. Respond with a JSON array only, no prose.

Text: %s

Each element of the array must have exactly these keys:
- "phrase_to_avoid": the phrase that could be misread
- "suggested_alternative": a clearer replacement
- "reason": why the phrase could be misread

If nothing in the text is ambiguous, respond with [].`

// LLMAdvisor implements Advisor on top of an OpenAI-compatible chat model.
type LLMAdvisor struct {
	llm llms.Model
}

func NewLLMAdvisor(apiKey, model string) (*LLMAdvisor, error) {
	if apiKey == "" {
		return nil, errors.New("suggest: missing API key")
	}

	llm, err := openai.New(openai.WithToken(apiKey), openai.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("suggest: init model: %w", err)
	}
	return &LLMAdvisor{llm: llm}, nil
}

// NewLLMAdvisorWithModel wires an already constructed model, used in tests.
func NewLLMAdvisorWithModel(llm llms.Model) *LLMAdvisor {
	return &LLMAdvisor{llm: llm}
}

func (a *LLMAdvisor) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	completion, err := llms.GenerateFromSinglePrompt(ctx, a.llm, fmt.Sprintf(promptTemplate, text))
	if err != nil {
		return nil, fmt.Errorf("suggest: model call: %w", err)
	}

	suggestions, err := parseSuggestions(completion)
	if err != nil {
		return nil, fmt.Errorf("suggest: parse response: %w", err)
	}
	return suggestions, nil
}

// parseSuggestions extracts the JSON array from the completion. Models
// routinely wrap their output in markdown fences or prose, so everything
// outside the outermost brackets is discarded.
func parseSuggestions(completion string) ([]Suggestion, error) {
	start := strings.Index(completion, "[")
	end := strings.LastIndex(completion, "]")
	if start == -1 || end == -1 || end < start {
		return nil, errors.New("no JSON array in completion")
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(completion[start:end+1]), &suggestions); err != nil {
		return nil, err
	}
	return suggestions, nil
}
