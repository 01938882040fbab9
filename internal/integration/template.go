package integration

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/aiandme-io/humanbound-engine/internal/types"
)

// Substitution tokens recognized in payload templates.
const (
	TokenPrompt    = "$PROMPT"
	TokenThreadID  = "$THREAD_ID"
	TokenAuthToken = "$AUTH_TOKEN"
	TokenHistory   = "$HISTORY"
)

// HistoryEntry is one prior exchange serialized into $HISTORY.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// templateVars carries the per-call substitution values.
type templateVars struct {
	Prompt    string
	ThreadID  string
	AuthToken string
	History   []HistoryEntry
}

// renderPayload walks a decoded payload template and substitutes tokens in
// every string value. A string that is exactly $HISTORY is replaced with the
// structured history slice rather than a flattened string.
func renderPayload(template map[string]any, vars templateVars) map[string]any {
	out, _ := renderValue(template, vars).(map[string]any)
	return out
}

func renderValue(v any, vars templateVars) any {
	switch value := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(value))
		for k, inner := range value {
			result[k] = renderValue(inner, vars)
		}
		return result
	case []any:
		result := make([]any, len(value))
		for i, inner := range value {
			result[i] = renderValue(inner, vars)
		}
		return result
	case string:
		if value == TokenHistory {
			entries := make([]any, 0, len(vars.History))
			for _, h := range vars.History {
				entries = append(entries, map[string]any{"role": h.Role, "content": h.Content})
			}
			return entries
		}
		return renderString(value, vars)
	default:
		return v
	}
}

func renderString(s string, vars templateVars) string {
	s = strings.ReplaceAll(s, TokenPrompt, vars.Prompt)
	s = strings.ReplaceAll(s, TokenThreadID, vars.ThreadID)
	s = strings.ReplaceAll(s, TokenAuthToken, vars.AuthToken)
	return s
}

// renderHeaders substitutes tokens in header values.
func renderHeaders(headers map[string]string, vars templateVars) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = renderString(v, vars)
	}
	return out
}

// authTokenFields are the response fields probed, in order, when a
// thread_auth endpoint returns a JSON body.
var authTokenFields = []string{"token", "access_token", "jwt"}

// threadIDFields are the response fields probed, in order, when a
// thread_init endpoint returns a JSON body.
var threadIDFields = []string{"thread_id", "id", "conversation_id"}

// extractAuthToken pulls a credential out of an auth response body.
func extractAuthToken(body []byte) (string, error) {
	return extractStringField(body, authTokenFields, types.AUTH_MALFORMED_RESPONSE, "no auth token field in response")
}

// extractThreadID pulls an opaque thread identifier out of an init response.
func extractThreadID(body []byte) (string, error) {
	return extractStringField(body, threadIDFields, types.THREAD_INIT_FAILED, "no thread id field in response")
}

func extractStringField(body []byte, fields []string, code types.ErrorCode, msg string) (string, error) {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Some integrations return the value as a bare string.
		trimmed := strings.TrimSpace(string(body))
		if trimmed != "" && !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
			return strings.Trim(trimmed, `"`), nil
		}
		return "", types.WrapError(code, msg, err)
	}

	for _, f := range fields {
		if v, ok := decoded[f].(string); ok && v != "" {
			return v, nil
		}
	}

	return "", types.NewError(code, msg)
}

// replyFields are the heuristic fields probed when no response_path is
// declared on the chat_completion spec.
var replyFields = []string{"response", "reply", "message", "content", "text", "answer", "output"}

// extractReply resolves the assistant text from a chat response body,
// using the declared response_path when present or field heuristics
// otherwise. Plain-text bodies are returned verbatim.
func extractReply(body []byte, responsePath string) (string, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", types.NewError(types.ENDPOINT_BAD_PAYLOAD, "empty response body")
		}
		return text, nil
	}

	if responsePath != "" {
		v, ok := resolvePath(decoded, responsePath)
		if !ok {
			return "", types.NewError(types.ENDPOINT_BAD_PAYLOAD, "response_path not found: "+responsePath)
		}
		if s, ok := v.(string); ok {
			return s, nil
		}
		return "", types.NewError(types.ENDPOINT_BAD_PAYLOAD, "response_path does not resolve to a string: "+responsePath)
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return "", types.NewError(types.ENDPOINT_BAD_PAYLOAD, "response body is not a JSON object")
	}

	for _, f := range replyFields {
		if v, ok := obj[f].(string); ok && v != "" {
			return v, nil
		}
	}

	// OpenAI-compatible shape: choices[0].message.content.
	if v, ok := resolvePath(obj, "choices.0.message.content"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, nil
		}
	}

	return "", types.NewError(types.ENDPOINT_BAD_PAYLOAD, "no reply text field in response")
}

// resolvePath walks a dot-separated path through decoded JSON. Numeric
// segments index into arrays.
func resolvePath(v any, path string) (any, bool) {
	current := v
	for _, seg := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}
