package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSON = errors.New("no JSON object found in engine response")

// ParseResponse decodes the engine's text. The whole text is tried first;
// failing that, the first balanced top-level {...} block is decoded.
func ParseResponse(content string) (interface{}, error) {
	content = strings.TrimSpace(content)

	var v interface{}
	if err := json.Unmarshal([]byte(content), &v); err == nil {
		return v, nil
	}

	block := extractJSON(content)
	if block == "" {
		return nil, errNoJSON
	}
	if err := json.Unmarshal([]byte(block), &v); err != nil {
		return nil, fmt.Errorf("failed to parse embedded JSON: %w", err)
	}
	return v, nil
}

// extractJSON extracts the first balanced JSON object from surrounding prose
// or markdown code fences
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}
	end := findJSONEnd(content, start)
	if end <= start {
		return ""
	}
	return content[start:end]
}

// findJSONEnd finds the end of the JSON object starting at start
func findJSONEnd(content string, start int) int {
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(content); i++ {
		char := content[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' && inString {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch char {
		case '{':
			braceCount++
		case '}':
			braceCount--
			if braceCount == 0 {
				return i + 1
			}
		}
	}

	return -1
}
