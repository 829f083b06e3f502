package markdown

import (
	"strings"
	"testing"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		contains []string
		excludes []string
	}{
		{
			name:     "bold",
			in:       "**bold**",
			contains: []string{"<strong>bold</strong>"},
		},
		{
			name:     "heading and list",
			in:       "# Title\n\n- one\n- two\n",
			contains: []string{"<h1", "<li>one</li>", "<li>two</li>"},
		},
		{
			name:     "fenced code",
			in:       "```go\nfmt.Println(1)\n```\n",
			contains: []string{"<pre><code", "fmt.Println(1)"},
		},
		{
			name:     "gfm table",
			in:       "| a | b |\n|---|---|\n| 1 | 2 |\n",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "gfm strikethrough",
			in:       "~~gone~~",
			contains: []string{"<del>gone</del>"},
		},
		{
			name:     "script tag",
			in:       "hi <script>alert(1)</script>",
			excludes: []string{"<script", "alert(1)</script>"},
		},
		{
			name:     "event handler",
			in:       `<img src="x" onerror="alert(1)">`,
			excludes: []string{"onerror"},
		},
		{
			name:     "javascript link",
			in:       "[click](javascript:alert(1))",
			excludes: []string{"javascript:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.in)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Render(%q) = %q, missing %q", tt.in, got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Render(%q) = %q, contains %q", tt.in, got, bad)
				}
			}
		})
	}
}

func TestRenderCumulativeFragments(t *testing.T) {
	var acc strings.Builder
	var last string
	for _, frag := range []string{"**bo", "ld**"} {
		acc.WriteString(frag)
		last = Render(acc.String())
	}
	if !strings.Contains(last, "<strong>bold</strong>") {
		t.Errorf("final render = %q, want <strong>bold</strong>", last)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Render(""); got != "" {
		t.Errorf("Render(\"\") = %q, want empty", got)
	}
}
