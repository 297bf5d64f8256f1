package openai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChildren(t *testing.T) {
	tests := []struct {
		name    string
		content string
		titles  []string
	}{
		{
			name:    "plain object",
			content: `{"children":[{"title":"One","description":"first"},{"title":"Two"}]}`,
			titles:  []string{"One", "Two"},
		},
		{
			name:    "code fenced",
			content: "```json\n{\"children\":[{\"title\":\"Fenced\"}]}\n```",
			titles:  []string{"Fenced"},
		},
		{
			name:    "wrapped in prose",
			content: `Sure, here you go: {"children":[{"title":"Buried"}]} hope that helps!`,
			titles:  []string{"Buried"},
		},
		{
			name:    "blank titles dropped",
			content: `{"children":[{"title":"  "},{"title":"Kept"},{"title":""}]}`,
			titles:  []string{"Kept"},
		},
		{
			name:    "whitespace trimmed",
			content: `{"children":[{"title":"  Padded  ","description":" also padded "}]}`,
			titles:  []string{"Padded"},
		},
		{
			name:    "empty content",
			content: "",
			titles:  nil,
		},
		{
			name:    "no object at all",
			content: "I could not produce anything useful.",
			titles:  nil,
		},
		{
			name:    "malformed json",
			content: `{"children":[{"title":`,
			titles:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := parseChildren(tt.content)
			require.Len(t, items, len(tt.titles))
			for i, title := range tt.titles {
				assert.Equal(t, title, items[i].Title)
			}
		})
	}
}
