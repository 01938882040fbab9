package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	raw := `{
		"streaming": false,
		"thread_auth": {"endpoint": "https://bot.example.com/auth", "payload": {"key": "${API_KEY}"}},
		"thread_init": {"endpoint": "https://bot.example.com/threads"},
		"chat_completion": {
			"endpoint": "https://bot.example.com/chat",
			"headers": {"Authorization": "Bearer $AUTH_TOKEN"},
			"payload": {"message": "$PROMPT", "thread": "$THREAD_ID"}
		}
	}`

	cfg, err := ParseConfig([]byte(raw))

	require.NoError(t, err)
	assert.False(t, cfg.Streaming)
	require.NotNil(t, cfg.ThreadAuth)
	require.NotNil(t, cfg.ThreadInit)
	assert.Equal(t, "https://bot.example.com/chat", cfg.ChatCompletion.Endpoint)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `not json at all`},
		{"missing chat_completion", `{"streaming": true}`},
		{"empty endpoint", `{"chat_completion": {"endpoint": ""}}`},
		{"bad scheme", `{"chat_completion": {"endpoint": "ftp://bot.example.com/chat"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestParseConfigString(t *testing.T) {
	inline := `{"chat_completion": {"endpoint": "https://bot.example.com/chat"}}`

	cfg, err := ParseConfigString(inline)
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/chat", cfg.ChatCompletion.Endpoint)

	path := filepath.Join(t.TempDir(), "integration.json")
	require.NoError(t, os.WriteFile(path, []byte(inline), 0o644))

	cfg, err = ParseConfigString(path)
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/chat", cfg.ChatCompletion.Endpoint)

	_, err = ParseConfigString(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRenderPayload(t *testing.T) {
	template := map[string]any{
		"message": "$PROMPT",
		"meta": map[string]any{
			"thread": "thread-$THREAD_ID",
			"nested": []any{"$AUTH_TOKEN", 42, true},
		},
		"history": "$HISTORY",
	}

	vars := templateVars{
		Prompt:    "hello",
		ThreadID:  "t1",
		AuthToken: "tok",
		History:   []HistoryEntry{{Role: "user", Content: "prior"}},
	}

	out := renderPayload(template, vars)

	assert.Equal(t, "hello", out["message"])
	meta := out["meta"].(map[string]any)
	assert.Equal(t, "thread-t1", meta["thread"])
	nested := meta["nested"].([]any)
	assert.Equal(t, "tok", nested[0])

	history := out["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "user", entry["role"])
	assert.Equal(t, "prior", entry["content"])
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		want    string
		wantErr bool
	}{
		{"response field", `{"response": "a"}`, "", "a", false},
		{"reply field", `{"reply": "b"}`, "", "b", false},
		{"text field", `{"text": "c"}`, "", "c", false},
		{"openai shape", `{"choices": [{"message": {"content": "d"}}]}`, "", "d", false},
		{"explicit path", `{"data": {"out": "e"}}`, "data.out", "e", false},
		{"plain text body", `just text`, "", "just text", false},
		{"no reply field", `{"status": "ok"}`, "", "", true},
		{"bad path", `{"data": {}}`, "data.missing", "", true},
		{"empty body", ``, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractReply([]byte(tt.body), tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadStream_OpenAIDeltas(t *testing.T) {
	stream := "data: {\"choices\": [{\"delta\": {\"content\": \"foo\"}}]}\n\n" +
		"data: {\"choices\": [{\"delta\": {\"content\": \"bar\"}}]}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"choices\": [{\"delta\": {\"content\": \"ignored\"}}]}\n\n"

	text, err := readStream(strings.NewReader(stream), "")

	require.NoError(t, err)
	assert.Equal(t, "foobar", text)
}

func TestReadStream_IgnoresCommentsAndEvents(t *testing.T) {
	stream := ": keep-alive\n\nevent: message\ndata: {\"content\": \"x\"}\n\ndata: [DONE]\n\n"

	text, err := readStream(strings.NewReader(stream), "")

	require.NoError(t, err)
	assert.Equal(t, "x", text)
}
