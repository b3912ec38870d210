package prompts

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	codeFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	objectRegex    = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex     = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// StripCodeFences removes a markdown code fence wrapper if the model added
// one around its JSON output.
func StripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if match := codeFenceRegex.FindStringSubmatch(trimmed); match != nil {
		return strings.TrimSpace(match[1])
	}
	return trimmed
}

// ParseJSONObject decodes a JSON object out of model output, tolerating code
// fences and surrounding prose.
func ParseJSONObject(text string, out interface{}) error {
	cleaned := StripCodeFences(text)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	// fall back to the outermost object in mixed content
	if match := objectRegex.FindString(cleaned); match != "" {
		return json.Unmarshal([]byte(match), out)
	}
	return errors.New("no JSON object found in model output")
}

// ParseJSONArray decodes a JSON array out of model output, tolerating code
// fences and surrounding prose.
func ParseJSONArray(text string, out interface{}) error {
	cleaned := StripCodeFences(text)

	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	if match := arrayRegex.FindString(cleaned); match != "" {
		return json.Unmarshal([]byte(match), out)
	}
	return errors.New("no JSON array found in model output")
}
