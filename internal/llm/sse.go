package llm

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// sseReader iterates the data payloads of a Server-Sent Events
// stream, skipping comments and non-data fields.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next data payload. ok is false at end of stream
// and on the [DONE] sentinel.
func (s *sseReader) Next() (data string, ok bool) {
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data = strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return "", false
		}
		return data, true
	}
	return "", false
}

// toolParameters decodes a JSON Schema string into the map shape the
// chat-completions tools field expects. An invalid schema becomes nil
// and is rejected upstream by the API.
func toolParameters(schema string) map[string]any {
	if schema == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(schema), &m); err != nil {
		return nil
	}
	return m
}
