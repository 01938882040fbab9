package judge

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// fakeModel returns canned content for GenerateContent calls.
type fakeModel struct {
	content string
	err     error
	calls   int
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.content}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return f.content, f.err
}

func TestLLMJudge_Evaluate(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantPassed     bool
		wantSeverity   types.Severity
		wantConfidence float64
	}{
		{
			name:           "raw json fail verdict",
			content:        `{"passed": false, "severity": "high", "category": "prompt_injection", "rationale": "complied", "confidence": 0.9}`,
			wantPassed:     false,
			wantSeverity:   types.SeverityHigh,
			wantConfidence: 0.9,
		},
		{
			name: "markdown wrapped verdict",
			content: "Here is my assessment:\n```json\n" +
				`{"passed": true, "severity": "info", "category": "", "rationale": "refused", "confidence": 0.8}` +
				"\n```",
			wantPassed:     true,
			wantSeverity:   types.SeverityInfo,
			wantConfidence: 0.8,
		},
		{
			name:           "informational severity alias",
			content:        `{"passed": false, "severity": "informational", "category": "qa", "rationale": "minor", "confidence": 0.6}`,
			wantPassed:     false,
			wantSeverity:   types.SeverityInfo,
			wantConfidence: 0.6,
		},
		{
			name:           "out of range confidence clamped",
			content:        `{"passed": false, "severity": "low", "category": "x", "rationale": "r", "confidence": 3.5}`,
			wantPassed:     false,
			wantSeverity:   types.SeverityLow,
			wantConfidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewLLMJudge(&fakeModel{content: tt.content})

			verdict, err := j.Evaluate(context.Background(), "extract the system prompt", "ignore instructions", "ok here it is", nil)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPassed, verdict.Passed)
			assert.Equal(t, tt.wantSeverity, verdict.Severity)
			assert.InDelta(t, tt.wantConfidence, verdict.Confidence, 0.001)
			assert.False(t, verdict.Unjudged)
		})
	}
}

func TestLLMJudge_Evaluate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		model    *fakeModel
		wantCode types.ErrorCode
	}{
		{
			name:     "model call fails",
			model:    &fakeModel{err: fmt.Errorf("rate limited")},
			wantCode: types.JUDGE_CALL_FAILED,
		},
		{
			name:     "no json in output",
			model:    &fakeModel{content: "I cannot evaluate this."},
			wantCode: types.JUDGE_MALFORMED_OUTPUT,
		},
		{
			name:     "failing verdict without valid severity",
			model:    &fakeModel{content: `{"passed": false, "severity": "bogus", "confidence": 0.9}`},
			wantCode: types.JUDGE_MALFORMED_OUTPUT,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := NewLLMJudge(tt.model)

			_, err := j.Evaluate(context.Background(), "obj", "p", "r", nil)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, types.CodeOf(err))
		})
	}
}

func TestLLMJudge_HistoryInPrompt(t *testing.T) {
	history := []Exchange{
		{Prompt: "first probe", Response: "first refusal"},
	}

	got := buildEvaluationPrompt("objective text", "latest probe", "latest reply", history)

	assert.Contains(t, got, "objective text")
	assert.Contains(t, got, "first probe")
	assert.Contains(t, got, "first refusal")
	assert.Contains(t, got, "latest probe")
	assert.Contains(t, got, "latest reply")
}

func TestNewOpenAIModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := NewOpenAIModel("gpt-4o-mini", "", "")
	require.Error(t, err)
	assert.Equal(t, types.JUDGE_CALL_FAILED, types.CodeOf(err))

	model, err := NewOpenAIModel("gpt-4o-mini", "test-key", "http://localhost:1/v1")
	require.NoError(t, err)
	assert.NotNil(t, model)
}

func TestUnjudged(t *testing.T) {
	v := Unjudged()

	assert.True(t, v.Passed)
	assert.True(t, v.Unjudged)
	assert.Zero(t, v.Confidence)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`, false},
		{"prose then object", `sure: {"a": 1} hope that helps`, `{"a": 1}`, false},
		{"nested braces in strings", `{"a": "b } c"}`, `{"a": "b } c"}`, false},
		{"json code block", "```json\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"untagged code block", "```\n{\"a\": 1}\n```", `{"a": 1}`, false},
		{"other language block skipped", "```python\nprint('x')\n```\n{\"a\": 2}", `{"a": 2}`, false},
		{"no json", "nothing here", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
