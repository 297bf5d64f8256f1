package openai

import (
	"strings"

	"github.com/smallbiznis/taskforge/internal/ai/domain"
)

const systemPrompt = "You output strictly a single JSON object. " +
	"Keys must be in English (children/title/description). No extra text."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// buildRequest is deterministic templating with no side effects.
func (c *Client) buildRequest(req domain.Request) chatRequest {
	var b strings.Builder
	b.WriteString("You are a task decomposition assistant. ")
	b.WriteString("Break the parent task below into small, actionable child tasks that together complete it.\n")
	b.WriteString("Parent title: " + req.Title + "\n")
	b.WriteString("Description: " + req.Description + "\n")
	if req.DueDate != "" {
		b.WriteString("Due date: " + req.DueDate + "\n")
	}
	if req.Priority != "" {
		b.WriteString("Priority: " + req.Priority + "\n")
	}
	b.WriteString(`Output exactly this shape: {"children":[{"title":"...","description":"..."}]}`)

	return chatRequest{
		Model: c.cfg.OpenAIModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: b.String()},
		},
		Temperature:    0,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
}
