package anthropic

import "testing"

func TestMessageResponseText(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: `{"contacts":`},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: `[]}`},
		},
	}
	if got := resp.Text(); got != `{"contacts":[]}` {
		t.Errorf("Text() = %q", got)
	}
}

func TestMessageResponseText_Empty(t *testing.T) {
	resp := &MessageResponse{}
	if got := resp.Text(); got != "" {
		t.Errorf("Text() = %q, want empty", got)
	}
}
