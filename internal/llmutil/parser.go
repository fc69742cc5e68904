// Package llmutil contains helpers for digesting model output.
package llmutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedObjectRegex extracts a JSON object wrapped in a markdown code fence.
// \x60 is a backtick; Go raw strings cannot contain them.
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseJSONObject parses a model response into the target type. Models asked
// for JSON still occasionally wrap the object in a markdown fence or
// conversational text, so the object is located before unmarshalling.
func ParseJSONObject[T any](response string) (*T, error) {
	response = strings.TrimSpace(response)
	candidate := response

	if strings.HasPrefix(response, "```") {
		if matches := fencedObjectRegex.FindStringSubmatch(response); len(matches) > 1 {
			candidate = matches[1]
		}
	} else if !strings.HasPrefix(response, "{") {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			candidate = response[first : last+1]
		}
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model JSON response: %w. Extracted JSON (truncated): %s",
			err, truncate(candidate, 500))
	}
	return &result, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
