package providers

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("```(?:json)?\n?|\n?```")

// parseStructured parses a model response into v, tolerating the output
// quirks of unreliable backends: markdown code fences around the JSON,
// prose before or after it, and raw control characters inside string values
// (a known issue with some models). If both the direct parse and the
// control-character repair fail, the caller gets a ParseError carrying the
// raw response.
func parseStructured(provider ProviderName, content string, v any) error {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(content, ""))

	// Extract the first top-level {...} object in case the model wrapped
	// the JSON in prose.
	if start := strings.Index(cleaned, "{"); start >= 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	firstErr := json.Unmarshal([]byte(cleaned), v)
	if firstErr == nil {
		return nil
	}

	repaired := escapeControlChars(cleaned)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &ParseError{Provider: provider, Raw: content, Err: firstErr}
	}

	return nil
}

// escapeControlChars rewrites raw newlines, carriage returns, and tabs found
// inside quoted JSON strings as their escaped forms, tracking escape state so
// already-escaped sequences and embedded quotes are left alone.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false

	for _, r := range s {
		if escaped {
			b.WriteRune(r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && inString:
			b.WriteRune(r)
			escaped = true
		case r == '"':
			inString = !inString
			b.WriteRune(r)
		case inString && r == '\n':
			b.WriteString(`\n`)
		case inString && r == '\r':
			b.WriteString(`\r`)
		case inString && r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

// parseAnalysis parses a structured analysis response and stamps the
// producing provider. Scores are clamped to the 0-100 range.
func parseAnalysis(provider ProviderName, content string) (*AnalysisResult, error) {
	var result AnalysisResult
	if err := parseStructured(provider, content, &result); err != nil {
		return nil, err
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	if result.Suggestions == nil {
		result.Suggestions = []string{}
	}
	result.Provider = provider

	return &result, nil
}

// parseOptimized parses a structured optimization response.
func parseOptimized(provider ProviderName, content string) (*OptimizedPrompt, error) {
	var result OptimizedPrompt
	if err := parseStructured(provider, content, &result); err != nil {
		return nil, err
	}

	if result.Improvements == nil {
		result.Improvements = []string{}
	}

	return &result, nil
}
