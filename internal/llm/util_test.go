package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json fence",
			input: "```json\n{\"workstreams\": []}\n```",
			want:  `{"workstreams": []}`,
		},
		{
			name:  "bare fence around array",
			input: "```\n[\"Led the migration\", \"Built the API\"]\n```",
			want:  `["Led the migration", "Built the API"]`,
		},
		{
			name:  "fence with other language tag",
			input: "```javascript\n{\"topic\": \"x\"}\n```",
			want:  `{"topic": "x"}`,
		},
		{
			name:  "preamble and trailing chatter",
			input: "Here are the unified bullets:\n[\"Led X\", \"Built Y\"]\nLet me know if you need changes.",
			want:  `["Led X", "Built Y"]`,
		},
		{
			name:  "braces inside strings",
			input: `Sure! {"topicName": "API {v2}", "rawQuotes": ["a } b"]} done`,
			want:  `{"topicName": "API {v2}", "rawQuotes": ["a } b"]}`,
		},
		{
			name:  "escaped quote inside string",
			input: `{"topic": "said \"hi\" } ok"}`,
			want:  `{"topic": "said \"hi\" } ok"}`,
		},
		{
			name:  "object containing array",
			input: `{"topics": ["a", "b"]}`,
			want:  `{"topics": ["a", "b"]}`,
		},
		{
			name:  "unbalanced is returned as is",
			input: `  {"topic": "x"  `,
			want:  `{"topic": "x"`,
		},
		{
			name:  "no json",
			input: "I cannot help with that.",
			want:  "I cannot help with that.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractJSONObject(`{"a": {"b": 1}} tail`))
	assert.Empty(t, extractJSONObject(`[1, 2]`))
	assert.Empty(t, extractJSONObject(``))
	assert.Empty(t, extractJSONObject(`{"open": true`))
}

func TestExtractJSONArray(t *testing.T) {
	assert.Equal(t, `[[1, 2], [3]]`, extractJSONArray(`[[1, 2], [3]] tail`))
	assert.Equal(t, `["]"]`, extractJSONArray(`["]"]`))
	assert.Empty(t, extractJSONArray(`{"a": 1}`))
	assert.Empty(t, extractJSONArray(`[1, 2`))
}
