package decompose

import (
	"encoding/json"
	"strings"

	"github.com/kawanishi0117/agent-company-sub000/internal/errkind"
)

// rawSubTask is the JSON structure returned by the model for one sub-task.
type rawSubTask struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	AcceptanceCriteria []string `json:"acceptanceCriteria"`
	EstimatedEffort    string   `json:"estimatedEffort"`
}

// rawResponse is the top-level JSON structure of a decomposition response.
type rawResponse struct {
	SubTasks []rawSubTask `json:"subTasks"`
}

// extractJSON pulls the JSON payload out of a model response, accepting a
// fenced code block or, failing that, the longest {...} slice.
func extractJSON(response string) (string, bool) {
	if idx := strings.Index(response, "```"); idx != -1 {
		rest := response[idx+3:]
		// Skip a language tag such as "json".
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			first := strings.TrimSpace(rest[:nl])
			if !strings.ContainsAny(first, "{}") {
				rest = rest[nl+1:]
			}
		}
		if end := strings.Index(rest, "```"); end != -1 {
			candidate := strings.TrimSpace(rest[:end])
			if candidate != "" {
				return candidate, true
			}
		}
	}

	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start == -1 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}

// parseResponse decodes the model output into raw sub-task entries.
func parseResponse(response string) ([]rawSubTask, error) {
	payload, ok := extractJSON(response)
	if !ok {
		return nil, errkind.Errorf(errkind.ParseError, "no JSON object found in response (%d chars)", len(response))
	}

	var parsed rawResponse
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return nil, errkind.Wrap(errkind.ParseError, err)
	}
	return parsed.SubTasks, nil
}

// validateEntries checks every raw entry and normalizes its criteria.
func validateEntries(entries []rawSubTask) error {
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" {
			return errkind.Errorf(errkind.ValidationError, "sub-task %d has an empty title", i+1)
		}
		if strings.TrimSpace(e.Description) == "" {
			return errkind.Errorf(errkind.ValidationError, "sub-task %d (%s) has an empty description", i+1, e.Title)
		}
	}
	return nil
}

// normalizeCriteria drops empty and whitespace-only criteria.
func normalizeCriteria(criteria []string) []string {
	var out []string
	for _, c := range criteria {
		if s := strings.TrimSpace(c); s != "" {
			out = append(out, s)
		}
	}
	return out
}
