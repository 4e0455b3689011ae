package scheduler

import "testing"

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		vars    map[string]string
		want    string
	}{
		{
			name:    "basic substitution",
			content: "Hi {{name}}, welcome",
			vars:    map[string]string{"name": "Ana"},
			want:    "Hi Ana, welcome",
		},
		{
			name:    "multiple variables",
			content: "{{a}}-{{b}}-{{a}}",
			vars:    map[string]string{"a": "1", "b": "2"},
			want:    "1-2-1",
		},
		{
			name:    "unbound placeholder stays visible",
			content: "Hi {{name}}, order {{order}}",
			vars:    map[string]string{"name": "Ana"},
			want:    "Hi Ana, order {{order}}",
		},
		{
			name:    "no variables",
			content: "plain text",
			vars:    nil,
			want:    "plain text",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderTemplate(tt.content, tt.vars); got != tt.want {
				t.Errorf("RenderTemplate = %q, want %q", got, tt.want)
			}
		})
	}
}
