package utils

import "testing"

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json without wrapper",
			input:    `{"analysis": "ok"}`,
			expected: `{"analysis": "ok"}`,
		},
		{
			name:     "json fenced block",
			input:    "```json\n{\"analysis\": \"ok\"}\n```",
			expected: `{"analysis": "ok"}`,
		},
		{
			name:     "bare fenced block",
			input:    "```\n{\"tools_needed\": []}\n```",
			expected: `{"tools_needed": []}`,
		},
		{
			name:     "uppercase json marker",
			input:    "```JSON\n{}\n```",
			expected: `{}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n```json\n{\"a\": 1}\n```  \n",
			expected: `{"a": 1}`,
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanJsonBlock(tt.input)
			if got != tt.expected {
				t.Errorf("CleanJsonBlock(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
