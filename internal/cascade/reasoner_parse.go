package cascade

import (
	"encoding/json"
	"errors"
	"fmt"
)

var errEmptyCompletion = errors.New("completion response had no choices")

func errStatusCode(code int) error {
	return fmt.Errorf("completion endpoint returned status %d", code)
}

// extractVerdict implements §4.6/§9's deliberately defensive parsing:
// extract the first balanced `{…}` substring from the model's raw text
// and unmarshal it, falling back on any failure rather than retrying.
func extractVerdict(raw string) (ReasonerResult, error) {
	jsonSubstr, ok := firstBalancedObject(raw)
	if !ok {
		return ReasonerResult{}, fmt.Errorf("no balanced JSON object found in completion text")
	}

	var result ReasonerResult
	if err := json.Unmarshal([]byte(jsonSubstr), &result); err != nil {
		return ReasonerResult{}, fmt.Errorf("parse completion JSON: %w", err)
	}

	switch result.Recommendation {
	case "approve", "block", "human_review":
	default:
		return ReasonerResult{}, fmt.Errorf("unrecognized recommendation %q", result.Recommendation)
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return ReasonerResult{}, fmt.Errorf("confidence %f out of [0,1]", result.Confidence)
	}

	return result, nil
}

// firstBalancedObject scans raw for the first top-level `{...}` span,
// tracking brace depth and skipping braces inside quoted strings.
func firstBalancedObject(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, ch := range raw {
		if start == -1 {
			if ch == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}
