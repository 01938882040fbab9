package integration

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// streamTerminator is the data payload that marks the end of an SSE stream.
const streamTerminator = "[DONE]"

// readStream consumes a text/event-stream body, concatenating the text of
// every data event until the terminal marker or stream close. Events whose
// data decodes as JSON contribute their reply field; bare-string data chunks
// are appended verbatim.
func readStream(body io.Reader, responsePath string) (string, error) {
	var out strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	dataLines := make([]string, 0, 4)
	flush := func() bool {
		if len(dataLines) == 0 {
			return false
		}
		data := strings.Join(dataLines, "\n")
		dataLines = dataLines[:0]

		if strings.TrimSpace(data) == streamTerminator {
			return true
		}
		out.WriteString(chunkText(data, responsePath))
		return false
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			if flush() {
				return out.String(), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") || strings.HasPrefix(line, "event:") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return out.String(), err
	}

	return out.String(), nil
}

// chunkText extracts the text carried by one SSE data payload.
func chunkText(data string, responsePath string) string {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return data
	}

	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return data
	}

	if responsePath != "" {
		if v, ok := resolvePath(decoded, responsePath); ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return ""
	}

	for _, f := range replyFields {
		if v, ok := obj[f].(string); ok {
			return v
		}
	}

	// OpenAI-compatible streaming delta shape.
	if v, ok := resolvePath(obj, "choices.0.delta.content"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}
