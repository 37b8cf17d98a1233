package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MatchVerdict is the parsed disambiguation answer.
type MatchVerdict struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// extractJSON locates the first balanced JSON object in a response. Models
// sometimes wrap JSON in prose or markdown fences despite instructions.
func extractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], nil
				}
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in response")
}

// ParseMatchVerdict extracts and validates a match verdict from raw model
// output. Confidence outside [0, 1] is rejected rather than clamped, since
// it signals the model did not follow the schema.
func ParseMatchVerdict(raw string) (*MatchVerdict, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract verdict: %w", err)
	}

	var verdict MatchVerdict
	if err := json.Unmarshal([]byte(jsonStr), &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return nil, fmt.Errorf("verdict confidence %.2f outside [0, 1]", verdict.Confidence)
	}
	return &verdict, nil
}

// ParseConsolidation extracts the consolidated record from raw model output.
func ParseConsolidation(raw string) (map[string]interface{}, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to extract consolidated record: %w", err)
	}

	var record map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &record); err != nil {
		return nil, fmt.Errorf("failed to parse consolidated record: %w", err)
	}
	if len(record) == 0 {
		return nil, fmt.Errorf("consolidated record is empty")
	}
	return record, nil
}
