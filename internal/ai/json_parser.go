package ai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled so repeated parses stay cheap
var (
	// Matches ```json\n{...}\n```, ```{...}```, ``` json{...}```, etc.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)

	// Greedy to capture nested structures
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

const maxParseInput = 10 * 1024 * 1024

// Parse decodes a model response into T, tolerating the usual wrapping:
// code fences, trailing commas, and prose around the JSON.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove code fences and retry
//  3. Drop trailing commas and retry
//  4. Extract the outermost object or array and retry
func Parse[T any](text, context string) (T, error) {
	var zero T
	if len(text) > maxParseInput {
		return zero, fmt.Errorf("%s: input exceeds size limit (%d > %d bytes)", context, len(text), maxParseInput)
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return zero, fmt.Errorf("%s: empty response", context)
	}

	result, err := tryDirectParse[T](trimmed)
	if err == nil {
		return result, nil
	}
	slog.Debug("direct JSON parse failed, trying cleanup strategies",
		"error", err, "textPreview", truncate(text, 100), "context", context)

	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return result, nil
		}
	}

	cleaned := strings.TrimSpace(trailingCommaRegex.ReplaceAllString(withoutFences, "$1"))
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return result, nil
	}

	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return result, nil
		}
	}

	return zero, fmt.Errorf("%s: all JSON parsing strategies failed: %s", context, truncate(text, 200))
}

func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

func removeCodeFences(text string) string {
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimSuffix(strings.TrimPrefix(cleaned, "`"), "`")
	}
	return strings.TrimSpace(cleaned)
}

// extractJSON picks the JSON kind by the first JSON-like character so an array
// of objects is not cut down to its first object.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" {
		switch trimmed[0] {
		case '[':
			if match := arrayRegex.FindString(text); match != "" {
				return match
			}
		case '{':
			if match := objectRegex.FindString(text); match != "" {
				return match
			}
		}
	}
	if match := objectRegex.FindString(text); match != "" {
		return match
	}
	return arrayRegex.FindString(text)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
