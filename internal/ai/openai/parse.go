package openai

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/taskforge/internal/ai/domain"
)

type childrenPayload struct {
	Children []domain.SubTask `json:"children"`
}

// parseChildren extracts the structured list from the model output.
// Models occasionally wrap the JSON in code fences or prose; malformed
// entries are dropped rather than failing the whole call.
func parseChildren(content string) []domain.SubTask {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil
	}

	var payload childrenPayload
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil
	}

	out := make([]domain.SubTask, 0, len(payload.Children))
	for _, child := range payload.Children {
		if strings.TrimSpace(child.Title) == "" {
			continue
		}
		out = append(out, domain.SubTask{
			Title:       strings.TrimSpace(child.Title),
			Description: strings.TrimSpace(child.Description),
		})
	}
	return out
}
