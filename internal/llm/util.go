package llm

import "strings"

// CleanJSONBlock removes markdown code block wrappers and conversational text
// around a JSON object or array. Models often wrap JSON in ```json ... ```
// blocks even when asked for JSON output.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	// Handle ```json ... ``` blocks
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	// Handle generic ``` ... ``` blocks
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip potential language identifier on first line
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.Contains(firstLine, "{") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if text == "" || text[0] == '{' || text[0] == '[' {
		if text != "" {
			if v := extractBalanced(text, text[0]); v != "" {
				return v
			}
		}
		return text
	}

	// Preamble before the JSON: take the first balanced object or array.
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	start := obj
	if start < 0 || (arr >= 0 && arr < start) {
		start = arr
	}
	if start < 0 {
		return text
	}
	if v := extractBalanced(text[start:], text[start]); v != "" {
		return v
	}
	return text
}

// extractBalanced returns the leading balanced value of s opened by open
// ('{' or '['), ignoring brackets inside strings. It returns "" when s does
// not start with open or never closes.
func extractBalanced(s string, open byte) string {
	if s == "" || s[0] != open {
		return ""
	}
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
